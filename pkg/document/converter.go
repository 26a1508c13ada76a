package document

import "context"

// PageOptions describes the printed page in inches.
type PageOptions struct {
	Width           float64
	Height          float64
	MarginTop       float64
	MarginRight     float64
	MarginBottom    float64
	MarginLeft      float64
	PrintBackground bool
}

// LetterPage is US Letter with 0.5in margins and backgrounds enabled.
func LetterPage() PageOptions {
	return PageOptions{
		Width:           8.5,
		Height:          11,
		MarginTop:       0.5,
		MarginRight:     0.5,
		MarginBottom:    0.5,
		MarginLeft:      0.5,
		PrintBackground: true,
	}
}

// Converter turns HTML into a paginated PDF.
type Converter interface {
	Convert(ctx context.Context, html []byte, opts PageOptions) ([]byte, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(ctx context.Context, html []byte, opts PageOptions) ([]byte, error)

func (f ConverterFunc) Convert(ctx context.Context, html []byte, opts PageOptions) ([]byte, error) {
	return f(ctx, html, opts)
}
