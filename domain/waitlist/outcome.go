package waitlist

// InsertOutcome is closed: Inserted, Duplicate and SchemaError are its only
// implementations.
type InsertOutcome interface {
	isInsertOutcome()
}

type Inserted struct{}

// Duplicate means the store already holds the normalized email. It is a
// successful signup from the caller's point of view.
type Duplicate struct{}

// SchemaError means the live table cannot take the insert. Message is safe to
// return to the caller.
type SchemaError struct {
	Message string
}

func (Inserted) isInsertOutcome()    {}
func (Duplicate) isInsertOutcome()   {}
func (SchemaError) isInsertOutcome() {}

func outcomeLabel(o InsertOutcome) string {
	switch o.(type) {
	case Inserted:
		return "inserted"
	case Duplicate:
		return "duplicate"
	case SchemaError:
		return "schema_error"
	default:
		return "unknown"
	}
}
