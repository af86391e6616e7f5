package restapi

import (
	"context"
	"fmt"

	"github.com/roach88/topoload/internal/inventory"
)

// Catalog returns every record of a master-data or lookup entity
// (node, building, cableMaster, deviceMasterJunctionBox, ...).
func (c *Client) Catalog(ctx context.Context, kind inventory.Kind) ([]inventory.Record, error) {
	return c.query(ctx, kind, inventory.Query{})
}

// DevicesInNode lists the devices attached to a node through the node's
// DevicesAll relation.
func (c *Client) DevicesInNode(ctx context.Context, nodeElid string) ([]inventory.Record, error) {
	resp, err := c.ElidRequest(ctx, inventory.KindNode, nodeElid, "DevicesAll", inventory.RelationQueryWire())
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("devices in node %s: %s", nodeElid, resp.Message)
	}
	rows, err := resp.Records()
	if err != nil {
		return nil, err
	}
	devices := make([]inventory.Record, 0, len(rows))
	for _, row := range rows {
		entity, ok := row.Attrs["entity"].(map[string]any)
		if !ok {
			continue
		}
		devices = append(devices, inventory.NewRecord(entity))
	}
	return devices, nil
}

// DevicesInZone lists the content of a building zone.
func (c *Client) DevicesInZone(ctx context.Context, zoneElid string) ([]inventory.Record, error) {
	q := inventory.Query{}.Equals("zoneElid", zoneElid)
	resp, err := c.Request(ctx, inventory.KindZone, "queryContent", q.Wire())
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("devices in zone %s: %s", zoneElid, resp.Message)
	}
	return resp.Records()
}

// TraySectionsBetween returns the tray sections stored with exactly this
// (fromNode, toNode) orientation.
func (c *Client) TraySectionsBetween(ctx context.Context, fromNode, toNode string) ([]inventory.Record, error) {
	q := inventory.Query{}.Equals("fromNodeElid", fromNode).Equals("toNodeElid", toNode)
	return c.query(ctx, inventory.KindTraySection, q)
}

// Connect issues a connect call on a junction box and returns the elids of
// the cables it created.
func (c *Client) Connect(ctx context.Context, req inventory.ConnectRequest) ([]string, error) {
	resp, err := c.ElidRequest(ctx, req.Entity(), req.JunctionBoxElid, "connect", req.Wire())
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("connect on %s %s: %s", req.Entity(), req.JunctionBoxElid, resp.Message)
	}
	obj, err := resp.Object()
	if err != nil {
		return nil, err
	}
	created, _ := obj["createdCables"].([]any)
	elids := make([]string, 0, len(created))
	for _, item := range created {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if elid := inventory.NewRecord(m).String("cableElid"); elid != "" {
			elids = append(elids, elid)
		}
	}
	return elids, nil
}

// UpdateCable sets a data cable's id and visible id.
func (c *Client) UpdateCable(ctx context.Context, elid, id, visibleID string) error {
	resp, err := c.ElidRequest(ctx, inventory.KindDataCable, elid, "update", inventory.CableUpdateWire(id, visibleID))
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("update data cable %s: %s", elid, resp.Message)
	}
	return nil
}

// FindCables returns data cables whose id matches the pattern.
func (c *Client) FindCables(ctx context.Context, pattern string) ([]inventory.Record, error) {
	return c.query(ctx, inventory.KindDataCable, inventory.Query{}.Like("id", pattern))
}

// DeleteCable deletes a data cable and releases what references it.
func (c *Client) DeleteCable(ctx context.Context, elid string) error {
	return c.Entity(inventory.KindDataCable).Delete(ctx, elid)
}
