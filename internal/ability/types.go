package ability

// Decision is the outcome of a single check together with the rule that
// produced it.
type Decision struct {
	Allowed bool
	Reason  string
}

func Allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func Deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// Aliases maps an action to the broader actions that imply it.
var Aliases = map[string][]string{
	"index":       {"read"},
	"show":        {"read"},
	"export":      {"read"},
	"new":         {"create"},
	"edit":        {"update"},
	"delete":      {"destroy"},
	"bulk_delete": {"destroy"},
}

const (
	// ManageAction in a rule matches every action.
	ManageAction = "manage"
	// AllSubjects in a rule matches every subject.
	AllSubjects = "all"
)
