package printer

// Canonical object names recognised by the objects-query endpoint and the
// WebSocket subscribe handler. Both surfaces use QueryObjects, so they can
// never disagree on the mapping.
const (
	ObjectTemperatureSensor = "temperature_sensor"
	ObjectExtruder          = "extruder"
	ObjectHeaterBed         = "heater_bed"
	ObjectPrintStats        = "print_stats"
	ObjectVirtualSDCard     = "virtual_sdcard"
	ObjectDisplayStatus     = "display_status"
)

// Catalog returns the fixed list of object names reported by
// /printer/objects/list.
func Catalog() []string {
	return []string{
		ObjectTemperatureSensor,
		ObjectHeaterBed,
		ObjectExtruder,
		ObjectPrintStats,
		ObjectVirtualSDCard,
		ObjectDisplayStatus,
	}
}

// QueryObjects resolves each requested name against one consistent snapshot.
// Unrecognised names are silently omitted, never an error: clients routinely
// probe for objects the simulated firmware does not expose.
func (m *Machine) QueryObjects(names []string) map[string]any {
	snap := m.Snapshot()

	status := make(map[string]any)
	for _, name := range names {
		switch name {
		case ObjectTemperatureSensor, ObjectExtruder:
			status[name] = heaterPayload(snap.Extruder)
		case ObjectHeaterBed:
			status[name] = heaterPayload(snap.HeaterBed)
		case ObjectPrintStats:
			status[name] = snap.PrintStats
		}
	}
	return status
}

// heaterPayload renders one temperature reading in wire format.
// Power is always 0.0: the simulator never models heater duty cycles.
func heaterPayload(r TemperatureReading) map[string]any {
	return map[string]any{
		"temperature": r.Actual,
		"target":      r.Target,
		"power":       0.0,
	}
}
