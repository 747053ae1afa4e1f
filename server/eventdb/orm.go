package eventdb

import (
	"github.com/cyclopcam/dbh"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// Sighting is one visit by one object. A bird that hops around the feeder
// for two minutes is a single sighting.
type Sighting struct {
	BaseModel
	Time         dbh.IntTime `json:"time"`
	Label        string      `json:"label"`
	Confidence   float32     `json:"confidence"`
	X            int         `json:"x"`
	Y            int         `json:"y"`
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	FrameWidth   int         `json:"frameWidth"`
	FrameHeight  int         `json:"frameHeight"`
	SnapshotPath string      `json:"snapshotPath"`
}

func (Sighting) TableName() string {
	return "sighting"
}
