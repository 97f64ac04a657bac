package harness

// Output is the observable outcome of compiling a scenario's entry.
type Output struct {
	CSSText      string   `json:"css_text"`
	Code         string   `json:"code"`
	Dependencies []string `json:"dependencies"`
	Selectors    []string `json:"selectors"`

	// ErrorCode and Error are set when compilation failed.
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`

	// Parses is how many times the run parsed a file.
	Parses int64 `json:"parses"`
}

// Failed reports whether compilation returned an error.
func (o *Output) Failed() bool {
	return o.Error != ""
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	Output Output `json:"output"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
