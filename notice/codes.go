package notice

// Event is a catalogued notice: its tier, id and fixed message.
type Event struct {
	Tier    Tier
	ID      int
	Message string
}

// Code returns the five digit notice code of the event.
func (e Event) Code() int { return Code(e.Tier, e.ID) }

// Do not renumber: downstream tooling matches on these codes.
var (
	OptionsResolved = Event{Debug, 1, "options resolved"}
	InputDigest     = Event{Debug, 2, "input digest"}
	OutputSummary   = Event{Debug, 3, "output summary"}

	ConversionStarted = Event{Info, 1, "conversion started"}
	InputRead         = Event{Info, 2, "input read"}
	ModelConverted    = Event{Info, 3, "model converted"}
	OutputWritten     = Event{Info, 4, "output written"}

	InputEmpty    = Event{Warning, 1, "input file is empty"}
	OutputNotGLB2 = Event{Warning, 2, "output is not a valid GLB 2.0 container"}

	ReadFailed    = Event{Error, 1, "reading failed"}
	ConvertFailed = Event{Error, 2, "converting failed"}
	WriteFailed   = Event{Error, 3, "writing failed"}
)
