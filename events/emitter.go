package events

// Emitter publishes log events for one component.
// A nil Emitter discards everything.
type Emitter struct {
	bus *Bus
}

// NewEmitter creates an emitter publishing to bus.
func NewEmitter(bus *Bus) *Emitter {
	return &Emitter{bus: bus}
}

// Info publishes an info event.
func (e *Emitter) Info(source, message string, fields map[string]string) {
	e.emit(LevelInfo, source, message, fields)
}

// Warn publishes a warning event.
func (e *Emitter) Warn(source, message string, fields map[string]string) {
	e.emit(LevelWarn, source, message, fields)
}

// Error publishes an error event.
func (e *Emitter) Error(source, message string, fields map[string]string) {
	e.emit(LevelError, source, message, fields)
}

func (e *Emitter) emit(level Level, source, message string, fields map[string]string) {
	if e == nil || e.bus == nil {
		return
	}
	e.bus.Publish(Event{
		Level:   level,
		Message: message,
		Source:  source,
		Fields:  fields,
	})
}
