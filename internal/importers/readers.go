package importers

import (
	"tonguelab/internal/dataset"
)

// AAASourceReaders returns the reader factory the store uses to
// reattach recorded modalities when a saved session is loaded. Beep
// detection stays off on reload; the go-signal results were already
// captured at import time and travel with the recording.
func AAASourceReaders() func(meta dataset.Meta, files dataset.FileInfo) dataset.SourceReader {
	return func(meta dataset.Meta, files dataset.FileInfo) dataset.SourceReader {
		switch m := meta.(type) {
		case dataset.UltrasoundMeta:
			return &ultReader{meta: m}
		case dataset.RecordedMeta:
			if m.Kind == dataset.KindMonoAudio {
				return &wavReader{}
			}
		}
		return nil
	}
}
