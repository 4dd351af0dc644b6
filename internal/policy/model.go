package policy

type Document struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Metadata   struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`

	Subjects []Subject `yaml:"subjects"`
	Roles    []Role    `yaml:"roles"`
	Bindings []Binding `yaml:"bindings"`
}

const (
	MatchUser      = "user"
	MatchAnonymous = "anonymous"
	MatchAny       = "any"
)

type Subject struct {
	Name  string `yaml:"name"`
	Match Match  `yaml:"match"`
}

// Match selects users. Name is ignored for anonymous and any.
type Match struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`
}

type Role struct {
	Name  string `yaml:"name"`
	Rules []Rule `yaml:"rules"`
}

// Rule grants (or, when Inverted, revokes) Actions on Subjects. Both lists
// hold glob patterns. Conditions restrict instance checks and queries.
type Rule struct {
	Actions    []string       `yaml:"actions"`
	Subjects   []string       `yaml:"subjects"`
	Conditions map[string]any `yaml:"conditions"`
	Inverted   bool           `yaml:"inverted"`
}

type Binding struct {
	Subject string   `yaml:"subject"`
	Roles   []string `yaml:"roles"`
}
