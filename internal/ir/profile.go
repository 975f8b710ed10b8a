package ir

// Profile is the top-level evaluated profile document.
type Profile struct {
	Name      string         `pkl:"name"`
	User      int            `pkl:"user"`
	Mutations []*Mutation    `pkl:"mutations"`
	Protected []string       `pkl:"protected"`
	Publish   *PublishConfig `pkl:"publish"`
}

// Mutation declares one desired device value.
type Mutation struct {
	Scope string  `pkl:"scope"` // e.g. "settings.global", "package"
	Name  string  `pkl:"name"`
	Value *string `pkl:"value"` // null means unset/delete
}

// Key returns the address of the mutated value.
func (m *Mutation) Key() Key {
	return Key{Scope: m.Scope, Name: m.Name}
}

// Desired returns the requested value, mapping null to Absent.
func (m *Mutation) Desired() Value {
	if m.Value == nil {
		return Absent
	}
	return NewValue(*m.Value)
}

// PublishConfig configures optional artifact publication to S3.
type PublishConfig struct {
	Bucket        string `pkl:"bucket"`
	Prefix        string `pkl:"prefix"`
	Region        string `pkl:"region"`
	Profile       string `pkl:"profile"`
	DynamoDBTable string `pkl:"dynamoDBTable"` // device locking
	Encrypt       bool   `pkl:"encrypt"`
}
