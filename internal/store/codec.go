package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"tonguelab/internal/dataset"
	"tonguelab/internal/metrics"
)

// encodeFloats packs a float64 slice as little-endian IEEE 754 bytes.
// Going through the bit pattern keeps the round trip exact, NaN
// payloads included.
func encodeFloats(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, value := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(value))
	}
	return buf
}

func decodeFloats(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("float blob of %d bytes is not a multiple of 8", len(buf))
	}
	values := make([]float64, len(buf)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return values, nil
}

// Metadata records are persisted as JSON next to a kind tag, so the
// loader can rebuild the concrete parameter type and with it the
// container's canonical name.
const (
	metaKindRecorded       = "recorded"
	metaKindUltrasound     = "ultrasound"
	metaKindPD             = "pixel_difference"
	metaKindSplineMetric   = "spline_metric"
	metaKindAggregateImage = "aggregate_image"
	metaKindDistanceMatrix = "distance_matrix"
)

func metaKind(meta dataset.Meta) (string, error) {
	switch meta.(type) {
	case dataset.RecordedMeta:
		return metaKindRecorded, nil
	case dataset.UltrasoundMeta:
		return metaKindUltrasound, nil
	case metrics.PDParams:
		return metaKindPD, nil
	case metrics.SplineParams:
		return metaKindSplineMetric, nil
	case metrics.AggregateImageParams:
		return metaKindAggregateImage, nil
	case metrics.DistanceMatrixParams:
		return metaKindDistanceMatrix, nil
	default:
		return "", fmt.Errorf("cannot persist metadata of type %T", meta)
	}
}

func decodeMeta(kind string, raw []byte) (dataset.Meta, error) {
	var (
		meta dataset.Meta
		err  error
	)
	switch kind {
	case metaKindRecorded:
		var m dataset.RecordedMeta
		err = json.Unmarshal(raw, &m)
		meta = m
	case metaKindUltrasound:
		var m dataset.UltrasoundMeta
		err = json.Unmarshal(raw, &m)
		meta = m
	case metaKindPD:
		var m metrics.PDParams
		err = json.Unmarshal(raw, &m)
		meta = m
	case metaKindSplineMetric:
		var m metrics.SplineParams
		err = json.Unmarshal(raw, &m)
		meta = m
	case metaKindAggregateImage:
		var m metrics.AggregateImageParams
		err = json.Unmarshal(raw, &m)
		meta = m
	case metaKindDistanceMatrix:
		var m metrics.DistanceMatrixParams
		err = json.Unmarshal(raw, &m)
		meta = m
	default:
		return nil, fmt.Errorf("unknown metadata kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", kind, err)
	}
	return meta, nil
}

func encodeJSON(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode %T: %w", value, err)
	}
	return string(raw), nil
}

func decodeJSON(raw string, target any) error {
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("decode %T: %w", target, err)
	}
	return nil
}
