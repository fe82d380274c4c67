package meting

// Resolution defaults applied when a query leaves a knob unset.
const (
	DefaultBitrate     = 320
	DefaultPictureSize = 300
	DefaultConcurrency = 6
)

// ResolutionRequest carries the per-query knobs for link enrichment.
type ResolutionRequest struct {
	// Server names the provider the records came from; it is echoed into
	// self-referential lyric references.
	Server string
	// BaseURL is the gateway's own externally visible base URL.
	BaseURL      string
	Bitrate      int
	PictureSize  int
	IncludeLyric bool
	// Concurrency bounds the number of in-flight provider calls.
	Concurrency int
}

// DefaultResolutionRequest returns a request with every default applied.
func DefaultResolutionRequest() ResolutionRequest {
	return ResolutionRequest{
		Bitrate:      DefaultBitrate,
		PictureSize:  DefaultPictureSize,
		IncludeLyric: true,
		Concurrency:  DefaultConcurrency,
	}
}

// WithDefaults fills unset numeric knobs. Concurrency below one is raised to
// one rather than reset, since an explicit low bound is a caller choice.
func (r ResolutionRequest) WithDefaults() ResolutionRequest {
	if r.Bitrate <= 0 {
		r.Bitrate = DefaultBitrate
	}
	if r.PictureSize <= 0 {
		r.PictureSize = DefaultPictureSize
	}
	if r.Concurrency < 1 {
		r.Concurrency = 1
	}
	return r
}
