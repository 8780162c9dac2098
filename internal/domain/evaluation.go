package domain

// Evaluation is a single entry of a recognition response.
// Assign marks a variable binding (Expr is the variable name).
type Evaluation struct {
	Expr   string `json:"expr"`
	Result string `json:"result"`
	Assign bool   `json:"assign"`
}

// Variables maps a variable name to its last known value.
type Variables map[string]string

// Clone returns an independent copy; a nil table clones to an empty one.
func (v Variables) Clone() Variables {
	out := make(Variables, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
