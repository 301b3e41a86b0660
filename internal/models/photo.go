package models

import "time"

// Photo kinds when attached to an order.
const (
	PhotoKindInitial = "initial"
	PhotoKindFinal   = "final"
)

// Photo references an image either by RemoteURL or by an inline base64
// payload. Exactly one of the two is populated.
type Photo struct {
	ID          string    `json:"id"`
	RemoteURL   string    `json:"remoteUrl,omitempty"`
	InlineData  string    `json:"inlineData,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	// SkipOptimize is set on responses for photos already in object
	// storage. Clients display them without re-encoding.
	SkipOptimize bool `json:"skipOptimize,omitempty"`
}

// IsInline reports whether the photo is stored inside the record.
func (p Photo) IsInline() bool {
	return p.RemoteURL == "" && p.InlineData != ""
}

// InlineBytes returns the size of the inline payload, zero for remote photos.
func InlineBytes(photos []Photo) int {
	total := 0
	for _, p := range photos {
		if p.IsInline() {
			total += len(p.InlineData)
		}
	}
	return total
}

// PhotoHolder is implemented by records that carry photos.
type PhotoHolder interface {
	PhotoList() []Photo
}

// PhotoList implements PhotoHolder.
func (o *WorkOrder) PhotoList() []Photo { return o.Photos }

// PhotoList implements PhotoHolder.
func (v *Vehicle) PhotoList() []Photo { return v.Photos }
