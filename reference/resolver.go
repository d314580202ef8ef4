package reference

import (
	"context"
	"net/url"
	"path"
	"strconv"

	"github.com/pkg/errors"
)

// System is a solar system.
type System struct {
	ID             int64
	Name           string
	SecurityStatus float64
}

// Constellation groups solar systems.
type Constellation struct {
	ID   int64
	Name string
}

// Region groups constellations.
type Region struct {
	ID   int64
	Name string
}

// Location is the full location context of a kill.
type Location struct {
	System        System
	Constellation Constellation
	Region        Region
}

// link is a reference from one resource to another.
type link struct {
	ID   int64  `json:"id"`
	Href string `json:"href"`
}

type systemResp struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	SecurityStatus float64 `json:"securityStatus"`
	Constellation  link    `json:"constellation"`
}

type constellationResp struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Region link   `json:"region"`
}

type regionResp struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Resolver resolves solar system IDs to their Location.
type Resolver struct {
	client *Client
}

// NewResolver creates a Resolver fetching resources via client.
func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve looks up the solar system, its constellation, and finally the constellation's region.
// Each call performs its own lookups; caching, if any, happens in the Client.
func (r *Resolver) Resolve(ctx context.Context, systemID int64) (*Location, error) {
	var sys systemResp
	if err := r.client.Get(ctx, SolarSystems, systemID, &sys); err != nil {
		return nil, err
	}
	if sys.Name == "" || sys.Constellation.ID == 0 {
		return nil, malformed(SolarSystems, strconv.FormatInt(systemID, 10), "system lacks name or constellation")
	}

	var con constellationResp
	if err := r.client.Get(ctx, Constellations, sys.Constellation.ID, &con); err != nil {
		return nil, err
	}
	if con.Name == "" || con.Region.Href == "" {
		return nil, malformed(Constellations, strconv.FormatInt(sys.Constellation.ID, 10),
			"constellation lacks name or region reference")
	}

	var reg regionResp
	if err := r.client.GetHref(ctx, Regions, con.Region.Href, &reg); err != nil {
		return nil, err
	}
	if reg.Name == "" {
		return nil, malformed(Regions, con.Region.Href, "region lacks name")
	}

	regionID := reg.ID
	if regionID == 0 {
		regionID = con.Region.ID
	}
	if regionID == 0 {
		regionID = idFromHref(con.Region.Href)
	}

	if sys.ID == 0 {
		sys.ID = systemID
	}

	return &Location{
		System:        System{ID: sys.ID, Name: sys.Name, SecurityStatus: sys.SecurityStatus},
		Constellation: Constellation{ID: sys.Constellation.ID, Name: con.Name},
		Region:        Region{ID: regionID, Name: reg.Name},
	}, nil
}

func malformed(res Resource, ref, msg string) error {
	return &LookupError{Resource: res, Ref: ref, Err: errors.New(msg)}
}

// idFromHref extracts the trailing numeric path segment of href, e.g. 10000043 from
// https://crest-tq.eveonline.com/regions/10000043/. It returns 0 if there is none.
func idFromHref(href string) int64 {
	u, err := url.Parse(href)
	if err != nil {
		return 0
	}

	id, err := strconv.ParseInt(path.Base(path.Clean(u.Path)), 10, 64)
	if err != nil {
		return 0
	}

	return id
}
