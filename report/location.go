package report

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	plaintextSize  = 10
	coordinateUnit = 10000000.0
)

// Location is a decrypted location fix.
type Location struct {
	Time       time.Time `json:"time"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Accuracy   int       `json:"accuracy"`
	Confidence int       `json:"confidence"`
	Status     int       `json:"status"`
}

func (l Location) String() string {
	return fmt.Sprintf("https://maps.google.com/?q=%f,%f\tacc=%v,conf=%v,status=%v",
		l.Lat,
		l.Lng,
		l.Accuracy,
		l.Confidence,
		l.Status,
	)
}

func decodeLocation(data []byte) (*Location, error) {
	if len(data) < plaintextSize {
		return nil, fmt.Errorf("%w: plaintext too short (%d bytes)", ErrMalformedReport, len(data))
	}
	latitude := float64(int32(binary.BigEndian.Uint32(data[0:4]))) / coordinateUnit
	longitude := float64(int32(binary.BigEndian.Uint32(data[4:8]))) / coordinateUnit
	if math.Abs(latitude) > 90 || math.Abs(longitude) > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range (%f, %f)", ErrMalformedReport, latitude, longitude)
	}
	return &Location{
		Lat:      latitude,
		Lng:      longitude,
		Accuracy: int(data[8]),
		Status:   int(data[9]),
	}, nil
}

func encodeLocation(l Location) ([]byte, error) {
	if math.Abs(l.Lat) > 90 || math.Abs(l.Lng) > 180 {
		return nil, fmt.Errorf("coordinates out of range (%f, %f)", l.Lat, l.Lng)
	}
	if l.Accuracy < 0 || l.Accuracy > math.MaxUint8 || l.Status < 0 || l.Status > math.MaxUint8 {
		return nil, fmt.Errorf("accuracy %d or status %d out of range", l.Accuracy, l.Status)
	}
	out := make([]byte, plaintextSize)
	binary.BigEndian.PutUint32(out[0:4], uint32(int32(math.Round(l.Lat*coordinateUnit))))
	binary.BigEndian.PutUint32(out[4:8], uint32(int32(math.Round(l.Lng*coordinateUnit))))
	out[8] = byte(l.Accuracy)
	out[9] = byte(l.Status)
	return out, nil
}
