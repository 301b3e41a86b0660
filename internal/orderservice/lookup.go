package orderservice

import (
	"context"
	"log/slog"

	"github.com/erikfacundo/mechiv2-sub000/internal/docstore"
	"github.com/erikfacundo/mechiv2-sub000/internal/models"
)

// lookupCache resolves display names for one request and is discarded
// afterwards. Misses and failures are cached as empty strings.
type lookupCache struct {
	clients  *docstore.Collection[models.Client]
	vehicles *docstore.Collection[models.Vehicle]
	logger   *slog.Logger

	clientNames   map[string]string
	vehiclePlates map[string]string
}

func newLookupCache(clients *docstore.Collection[models.Client], vehicles *docstore.Collection[models.Vehicle], logger *slog.Logger) *lookupCache {
	return &lookupCache{
		clients:       clients,
		vehicles:      vehicles,
		logger:        logger,
		clientNames:   map[string]string{},
		vehiclePlates: map[string]string{},
	}
}

func (c *lookupCache) clientName(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	if name, ok := c.clientNames[id]; ok {
		return name
	}
	var name string
	client, err := c.clients.Get(ctx, id)
	switch {
	case err == nil:
		name = client.Name
	case !isNotFound(err):
		c.logger.Warn("client lookup failed", slog.String("client_id", id), slog.String("error", err.Error()))
	}
	c.clientNames[id] = name
	return name
}

func (c *lookupCache) vehiclePlate(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	if plate, ok := c.vehiclePlates[id]; ok {
		return plate
	}
	var plate string
	v, err := c.vehicles.Get(ctx, id)
	switch {
	case err == nil:
		plate = v.Plate
	case !isNotFound(err):
		c.logger.Warn("vehicle lookup failed", slog.String("vehicle_id", id), slog.String("error", err.Error()))
	}
	c.vehiclePlates[id] = plate
	return plate
}
