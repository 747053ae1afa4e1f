// Package eventdb stores the sighting history in a sqlite database.
package eventdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

type EventDB struct {
	log  logs.Log
	db   *gorm.DB
	root string
}

// Open or create the sightings DB at root/sightings.sqlite
func Open(log logs.Log, root string) (*EventDB, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("Failed to create event storage path '%v': %w", root, err)
	}
	dbPath := filepath.Join(root, "sightings.sqlite")
	db, err := dbh.OpenDB(log, dbh.MakeSqliteConfig(dbPath), Migrations(log), 0)
	if err != nil {
		return nil, err
	}
	return &EventDB{
		log:  log,
		db:   db,
		root: root,
	}, nil
}

// Close closes the database. Queries after Close will fail.
func (e *EventDB) Close() error {
	sqlDB, err := e.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AddSighting records a new sighting and returns it with its ID populated.
func (e *EventDB) AddSighting(s *Sighting) error {
	return e.db.Create(s).Error
}

// Latest returns the most recent sighting, or nil if the DB is empty.
func (e *EventDB) Latest() (*Sighting, error) {
	s := Sighting{}
	err := e.db.Order("time DESC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &s, nil
}

// Recent returns up to limit sightings, most recent first.
func (e *EventDB) Recent(limit int) ([]Sighting, error) {
	sightings := []Sighting{}
	err := e.db.Order("time DESC").Limit(limit).Find(&sightings).Error
	return sightings, err
}

// SightingsSince returns all sightings at or after t, oldest first.
func (e *EventDB) SightingsSince(t time.Time) ([]Sighting, error) {
	sightings := []Sighting{}
	err := e.db.Where("time >= ?", dbh.MakeIntTime(t)).Order("time ASC").Find(&sightings).Error
	return sightings, err
}

// Count returns the total number of sightings.
func (e *EventDB) Count() (int64, error) {
	n := int64(0)
	err := e.db.Model(&Sighting{}).Count(&n).Error
	return n, err
}
