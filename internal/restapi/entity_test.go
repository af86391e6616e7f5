package restapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/topoload/internal/inventory"
)

func TestEntityCreate_Success(t *testing.T) {
	g, srv := newFakeGateway(t)
	g.on(entityPath+"/building/create", 200, `{"returnData":{"elid":"B-ELID"}}`)
	c := loggedIn(t, srv)

	cand := inventory.NewCandidate(inventory.KindBuilding, map[string]any{"name": "B1"}).WithLink("campus", "C1")
	res, err := c.Entity(inventory.KindBuilding).Create(context.Background(), cand)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "B-ELID", res.Elid)

	body := g.last().Body
	assert.Equal(t, "B1", body["name"])
	assert.Equal(t, map[string]any{"linkedElid": "C1"}, body["createLinkCampus"])
}

func TestEntityCreate_Conflict(t *testing.T) {
	for _, msg := range []string{"Building B1 already exists", "Id is Already In Use"} {
		t.Run(msg, func(t *testing.T) {
			g, srv := newFakeGateway(t)
			g.on(entityPath+"/building/create", 400, `{"status":{"message":"`+msg+`"}}`)
			c := loggedIn(t, srv)

			res, err := c.Entity(inventory.KindBuilding).Create(context.Background(),
				inventory.NewCandidate(inventory.KindBuilding, map[string]any{"name": "B1"}))
			require.NoError(t, err)
			assert.True(t, res.AlreadyExists)
			assert.False(t, res.Success)
		})
	}
}

func TestEntityCreate_OtherRejection(t *testing.T) {
	g, srv := newFakeGateway(t)
	g.on(entityPath+"/node/create", 400, `{"status":{"message":"coordinate out of range"}}`)
	c := loggedIn(t, srv)

	res, err := c.Entity(inventory.KindNode).Create(context.Background(), inventory.NewCandidate(inventory.KindNode, nil))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.AlreadyExists)
	assert.Equal(t, "coordinate out of range", res.Message)
}

func TestEntityCreate_SuccessWithoutElid(t *testing.T) {
	g, srv := newFakeGateway(t)
	g.on(entityPath+"/node/create", 200, `{"returnData":{}}`)
	c := loggedIn(t, srv)

	res, err := c.Entity(inventory.KindNode).Create(context.Background(), inventory.NewCandidate(inventory.KindNode, nil))
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestEntityGetAll_UsesElidWildcard(t *testing.T) {
	g, srv := newFakeGateway(t)
	g.on(entityPath+"/campus/query", 200, `{"returnData":[{"elid":"C1","name":"North"}]}`)
	c := loggedIn(t, srv)

	recs, err := c.Entity(inventory.KindCampus).GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "North", recs[0].String("name"))

	restrictions := g.last().Body["restrictions"].(map[string]any)
	assert.Equal(t, map[string]any{"value": "*", "operator": "like"}, restrictions["elid"])
}

func TestEntityGetAll_RejectedIsError(t *testing.T) {
	g, srv := newFakeGateway(t)
	g.on(entityPath+"/campus/query", 400, `{"status":{"message":"bad restriction"}}`)
	c := loggedIn(t, srv)

	_, err := c.Entity(inventory.KindCampus).GetAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad restriction")
}

func TestEntityGetByElid(t *testing.T) {
	g, srv := newFakeGateway(t)
	c := loggedIn(t, srv)
	e := c.Entity(inventory.KindNode)

	g.on(entityPath+"/node/query", 200, `{"returnData":[]}`)
	rec, err := e.GetByElid(context.Background(), "N1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	g.on(entityPath+"/node/query", 200, `{"returnData":[{"elid":"N1"}]}`)
	rec, err = e.GetByElid(context.Background(), "N1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "N1", rec.Elid)

	g.on(entityPath+"/node/query", 200, `{"returnData":[{"elid":"N1"},{"elid":"N1"}]}`)
	_, err = e.GetByElid(context.Background(), "N1")
	assert.True(t, inventory.IsDataIntegrityError(err))
}

func TestEntityDelete_CableReleasesReferences(t *testing.T) {
	g, srv := newFakeGateway(t)
	g.on(entityPath+"/dataCable/CAB-1/delete", 200, `{}`)
	c := loggedIn(t, srv)

	require.NoError(t, c.Entity(inventory.KindDataCable).Delete(context.Background(), "CAB-1"))
	assert.Equal(t, "true", g.last().Body["releaseTrmRoute"])
}

func TestEntityDelete_Rejected(t *testing.T) {
	g, srv := newFakeGateway(t)
	g.on(entityPath+"/campus/C1/delete", 400, `{"status":{"message":"campus has buildings"}}`)
	c := loggedIn(t, srv)

	err := c.Entity(inventory.KindCampus).Delete(context.Background(), "C1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "campus has buildings")
}
