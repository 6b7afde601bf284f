package model

// ExitKind is the classified result of a task. The set of variants is closed:
// Success, PerformanceTimeout, AnalysisError, ThreadPanic and NonInterpreted.
type ExitKind interface {
	String() string
	exitKind()
}

type Success struct{}

type PerformanceTimeout struct{}

// AnalysisError is a structured error block reported by the analyzer.
type AnalysisError struct {
	Detail string
}

// ThreadPanic is a crash of the analyzer.
type ThreadPanic struct {
	Detail string
}

// NonInterpreted is output matching no known pattern. Both streams are kept verbatim.
type NonInterpreted struct {
	Stdout string
	Stderr string
}

func (Success) String() string            { return "Success" }
func (PerformanceTimeout) String() string { return "PerformanceTimeout" }
func (e AnalysisError) String() string    { return "Error: " + e.Detail }
func (e ThreadPanic) String() string      { return "ThreadPanic: " + e.Detail }
func (NonInterpreted) String() string     { return "NonInterpreted Error" }

func (Success) exitKind()            {}
func (PerformanceTimeout) exitKind() {}
func (AnalysisError) exitKind()      {}
func (ThreadPanic) exitKind()        {}
func (NonInterpreted) exitKind()     {}

// ExitName returns the variant name without any detail, usable as a counter key.
func ExitName(e ExitKind) string {
	switch e.(type) {
	case Success:
		return "Success"
	case PerformanceTimeout:
		return "PerformanceTimeout"
	case AnalysisError:
		return "AnalysisError"
	case ThreadPanic:
		return "ThreadPanic"
	case NonInterpreted:
		return "NonInterpreted"
	default:
		return "Unknown"
	}
}
