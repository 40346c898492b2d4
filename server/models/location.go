package models

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const SRID = 4326

type GeomPoint geom.Point

func NewGeomPoint(lat, lng float64) (*GeomPoint, error) {
	p, err := geom.NewPoint(geom.XY).SetSRID(SRID).SetCoords(geom.Coord{lng, lat})
	if err != nil {
		return nil, err
	}
	g := GeomPoint(*p)
	return &g, nil
}

func (g *GeomPoint) Lat() float64 {
	return (*geom.Point)(g).Coords().Y()
}

func (g *GeomPoint) Lng() float64 {
	return (*geom.Point)(g).Coords().X()
}

// Value return geometry point value, implement driver.Valuer interface
func (g GeomPoint) Value() (driver.Value, error) {
	b := geom.Point(g)
	bp := &b
	ewkbPt := ewkb.Point{Point: bp.SetSRID(SRID)}
	return ewkbPt.Value()
}

// Scan scan value into geom.Point, implements sql.Scanner interface.
// PostGIS returns hex encoded EWKB, other databases the raw bytes.
func (g *GeomPoint) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unexpected geometry type %T", value)
	}
	if t, err := hex.DecodeString(string(raw)); err == nil {
		raw = t
	}
	gt, err := ewkb.Unmarshal(raw)
	if err != nil {
		return err
	}
	pt, ok := gt.(*geom.Point)
	if !ok {
		return fmt.Errorf("unexpected geometry %T", gt)
	}
	*g = GeomPoint(*pt)
	return nil
}

// GormDBDataType uses a PostGIS point column on postgres and a plain blob
// elsewhere.
func (GeomPoint) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "geometry(POINT,4326)"
	}
	return "blob"
}

type Location struct {
	FoundAt         time.Time `gorm:"primaryKey;index:idx_found_at"`
	ReportedAt      time.Time `gorm:"index:idx_reported_at"`
	KeyID           string    `gorm:"primaryKey;index:idx_key_id"`
	OriginalContent []byte
	Geometry        *GeomPoint `gorm:"index:idx_geometry"`
	Accuracy        int
	Confidence      int `gorm:"index:idx_confidence"`
	Status          int
	CurrentKeyID    string `gorm:"index:idx_current_key_id"`
	KeyType         string
}

func (l Location) Result() LocationResult {
	r := LocationResult{
		FoundAt:    l.FoundAt,
		ReportedAt: l.ReportedAt,
		KeyID:      l.KeyID,
		Accuracy:   l.Accuracy,
		Confidence: l.Confidence,
		Status:     l.Status,
	}
	if l.Geometry != nil {
		r.Lat = l.Geometry.Lat()
		r.Lng = l.Geometry.Lng()
	}
	return r
}

type LocationResult struct {
	FoundAt    time.Time `json:"foundAt"`
	ReportedAt time.Time `json:"reportedAt"`
	KeyID      string    `json:"keyId"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Accuracy   int       `json:"accuracy"`
	Confidence int       `json:"confidence"`
	Status     int       `json:"status"`
}
