package store

// Caption length variants.
const (
	CaptionLengthShort  = "short"
	CaptionLengthMedium = "medium"
	CaptionLengthLong   = "long"
)

// IsValidCaptionLength reports whether length is a known caption length variant.
func IsValidCaptionLength(length string) bool {
	switch length {
	case CaptionLengthShort, CaptionLengthMedium, CaptionLengthLong:
		return true
	}
	return false
}

// Caption represents a reusable caption with its engagement snapshot.
// Engagement counters are the only mutable fields after creation.
type Caption struct {
	Text     string
	Tags     []string
	Length   string
	Category string
	Tone     string
	Audience string
	Language string

	// Engagement snapshot
	Likes    int32
	Shares   int32
	Comments int32

	CreatedTs int64
	UpdatedTs int64
	ID        int32
}

// CreateCaption specifies the data for inserting a caption.
type CreateCaption struct {
	Text     string
	Tags     []string
	Length   string
	Category string
	Tone     string
	Audience string
	Language string
	Likes    int32
	Shares   int32
	Comments int32
}

// FindCaption specifies the conditions for finding captions.
type FindCaption struct {
	ID       *int32
	Category *string
	Tone     *string
	Limit    *int

	// Random returns rows in random order; used to pick post material.
	Random bool
}

// UpdateCaptionEngagement specifies a counter update for one caption.
type UpdateCaptionEngagement struct {
	ID       int32
	Likes    int32
	Shares   int32
	Comments int32
}
