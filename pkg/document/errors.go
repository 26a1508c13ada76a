package document

import "errors"

var (
	ErrNotPersisted   = errors.New("document.not_persisted")
	ErrUnknownKind    = errors.New("document.unknown_kind")
	ErrRenderFailed   = errors.New("document.render_failed")
	ErrConvertFailed  = errors.New("document.convert_failed")
	ErrEngineOpen     = errors.New("document.engine_unavailable")
	ErrGeneratorPanic = errors.New("document.generator_panic")
	ErrEmptyOutput    = errors.New("document.empty_output")
)
