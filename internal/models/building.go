package models

import "time"

// Building groups rooms on campus.
type Building struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BuildingFilter defines list options for buildings.
type BuildingFilter struct {
	ListQuery
}

// Room is a bookable teaching space.
type Room struct {
	ID         string    `db:"id" json:"id"`
	BuildingID string    `db:"building_id" json:"building_id"`
	Code       string    `db:"code" json:"code"`
	Name       string    `db:"name" json:"name"`
	Capacity   int       `db:"capacity" json:"capacity"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// RoomFilter defines list options for rooms.
type RoomFilter struct {
	ListQuery
	BuildingID  string
	MinCapacity int
}
