package rate

import "time"

// RouteClass agrupa rutas con el mismo presupuesto de requests.
type RouteClass string

const (
	ClassAuth       RouteClass = "auth"
	ClassSensitive  RouteClass = "sensitive"
	ClassPublicForm RouteClass = "public_form"
	ClassAPI        RouteClass = "api"
	ClassAdmin      RouteClass = "admin"
)

// Preset define el presupuesto de una clase de ruta.
type Preset struct {
	Max    int64
	Window time.Duration
}

// Presets inmutable de clase -> presupuesto.
type Presets map[RouteClass]Preset

// DefaultPresets devuelve los presupuestos de la plataforma.
func DefaultPresets() Presets {
	return Presets{
		ClassAuth:       {Max: 5, Window: time.Minute},
		ClassSensitive:  {Max: 3, Window: time.Minute},
		ClassPublicForm: {Max: 20, Window: time.Minute},
		ClassAPI:        {Max: 60, Window: time.Minute},
		ClassAdmin:      {Max: 120, Window: time.Minute},
	}
}

// Lookup resuelve el preset de una clase; clases desconocidas caen en api.
func (p Presets) Lookup(class RouteClass) Preset {
	if preset, ok := p[class]; ok {
		return preset
	}
	return p[ClassAPI]
}
