package access

// Módulos funcionales conocidos por la plataforma.
const (
	ModuleCRM          = "crm"
	ModuleAnalytics    = "analytics"
	ModuleContent      = "content"
	ModuleSEO          = "seo"
	ModuleSocial       = "social"
	ModuleClientPortal = "client_portal"
	ModuleProjects     = "projects"
	ModuleFinance      = "finance"
	ModuleHR           = "hr"
	ModuleAI           = "ai"
)

// AllModules enumera el universo de módulos, en orden estable.
var AllModules = []string{
	ModuleCRM, ModuleAnalytics, ModuleContent, ModuleSEO, ModuleSocial,
	ModuleClientPortal, ModuleProjects, ModuleFinance, ModuleHR, ModuleAI,
}

// Policy mapea rol -> módulos habilitados. Inmutable después de construida:
// los lookups concurrentes no requieren locks.
type Policy struct {
	roles map[string]map[string]bool
}

// NewPolicy construye una Policy a partir de la tabla rol->módulos.
// Copia las entradas; el mapa de entrada puede reutilizarse después.
func NewPolicy(table map[string][]string) *Policy {
	roles := make(map[string]map[string]bool, len(table))
	for role, mods := range table {
		set := make(map[string]bool, len(mods))
		for _, m := range mods {
			set[m] = true
		}
		roles[role] = set
	}
	return &Policy{roles: roles}
}

// DefaultPolicy es la tabla de acceso de la plataforma.
func DefaultPolicy() *Policy {
	return NewPolicy(map[string][]string{
		"admin":           AllModules,
		"owner":           AllModules,
		"sales":           {ModuleCRM, ModuleAnalytics, ModuleAI},
		"marketing":       {ModuleContent, ModuleSEO, ModuleSocial, ModuleAnalytics, ModuleAI},
		"project_manager": {ModuleProjects, ModuleAnalytics, ModuleAI},
		"finance":         {ModuleFinance, ModuleAnalytics, ModuleAI},
		"hr":              {ModuleHR, ModuleAnalytics, ModuleAI},
		"client":          {ModuleClientPortal},
	})
}

// Allowed decide si un rol puede entrar a un módulo. Si el tenant trae una
// lista custom no vacía, esa lista REEMPLAZA por completo los defaults del
// rol. Rol desconocido -> sin acceso. Total: nunca retorna error.
func (p *Policy) Allowed(role, module string, customModules []string) bool {
	if len(customModules) > 0 {
		for _, m := range customModules {
			if m == module {
				return true
			}
		}
		return false
	}
	set, ok := p.roles[role]
	if !ok {
		return false
	}
	return set[module]
}

// ModulesFor lista los módulos efectivos para un rol (orden de AllModules).
func (p *Policy) ModulesFor(role string, customModules []string) []string {
	if len(customModules) > 0 {
		out := make([]string, len(customModules))
		copy(out, customModules)
		return out
	}
	set, ok := p.roles[role]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for _, m := range AllModules {
		if set[m] {
			out = append(out, m)
		}
	}
	return out
}

// KnownRole reporta si el rol existe en la tabla.
func (p *Policy) KnownRole(role string) bool {
	_, ok := p.roles[role]
	return ok
}
