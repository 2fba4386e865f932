// Package garage stores a user's vehicles and logbook drafts. Vehicles are
// durable and survive logout; drafts are session-scoped.
package garage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oggyb/fahrme/internal/storage"
)

var (
	ErrNoUser         = errors.New("garage: no user")
	ErrInvalidVehicle = errors.New("garage: make and model are required")
	ErrNotFound       = errors.New("garage: vehicle not found")
)

type VehicleStatus string

const (
	StatusOwned  VehicleStatus = "owned"
	StatusFormer VehicleStatus = "former"
)

type Vehicle struct {
	ID        string        `json:"id"`
	Make      string        `json:"make"`
	Model     string        `json:"model"`
	Year      int           `json:"year,omitempty"`
	Nickname  string        `json:"nickname,omitempty"`
	Status    VehicleStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

type Garage struct {
	store storage.Store
	now   func() time.Time
}

func New(store storage.Store) *Garage {
	return &Garage{store: store, now: time.Now}
}

// AddVehicle stores v for userID, filling in id, status and creation time.
func (g *Garage) AddVehicle(ctx context.Context, userID string, v Vehicle) (Vehicle, error) {
	if userID == "" {
		return Vehicle{}, ErrNoUser
	}
	v.Make, v.Model = strings.TrimSpace(v.Make), strings.TrimSpace(v.Model)
	if v.Make == "" || v.Model == "" {
		return Vehicle{}, ErrInvalidVehicle
	}
	if v.Status != StatusFormer {
		v.Status = StatusOwned
	}
	v.ID = uuid.NewString()
	v.CreatedAt = g.now().UTC()

	list, err := g.Vehicles(ctx, userID)
	if err != nil {
		return Vehicle{}, err
	}
	list = append(list, v)
	if err := storage.SetJSON(ctx, g.store, storage.CarsKey(userID), list); err != nil {
		return Vehicle{}, fmt.Errorf("save vehicles: %w", err)
	}
	return v, nil
}

// Vehicles lists userID's vehicles in insertion order.
func (g *Garage) Vehicles(ctx context.Context, userID string) ([]Vehicle, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	var list []Vehicle
	err := storage.GetJSON(ctx, g.store, storage.CarsKey(userID), &list)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load vehicles: %w", err)
	}
	return list, nil
}

// RemoveVehicle deletes one of userID's vehicles.
func (g *Garage) RemoveVehicle(ctx context.Context, userID, vehicleID string) error {
	list, err := g.Vehicles(ctx, userID)
	if err != nil {
		return err
	}
	for i, v := range list {
		if v.ID == vehicleID {
			list = append(list[:i], list[i+1:]...)
			return storage.SetJSON(ctx, g.store, storage.CarsKey(userID), list)
		}
	}
	return ErrNotFound
}

// SaveDraft keeps unfinished logbook text under name until logout.
func (g *Garage) SaveDraft(ctx context.Context, userID, name, content string) error {
	if userID == "" {
		return ErrNoUser
	}
	return g.store.Set(ctx, storage.DraftKey(userID, name), content)
}

// Draft returns the draft or "" if there is none.
func (g *Garage) Draft(ctx context.Context, userID, name string) (string, error) {
	if userID == "" {
		return "", ErrNoUser
	}
	v, err := g.store.Get(ctx, storage.DraftKey(userID, name))
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	return v, err
}

// Drafts lists the names of userID's drafts.
func (g *Garage) Drafts(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	keys, err := g.store.Keys(ctx, storage.DraftPrefix(userID))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, storage.DraftPrefix(userID)))
	}
	return names, nil
}
