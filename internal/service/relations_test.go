package service

import (
	"context"
	"testing"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtrasStayInSync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wedding := env.create(t, "Eenvoudig Trouwen", "simpel")
	bouquet := env.create(t, "Bruidsboeket", "simpel")

	owner, err := env.svc.AddExtra(ctx, wedding.ID, bouquet.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IDSet{bouquet.ID}, owner.Extras)
	assert.NotNil(t, owner.ModifiedAt)

	gotBouquet, err := env.svc.GetProduct(ctx, bouquet.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IDSet{wedding.ID}, gotBouquet.ServedAsExtraFor)

	event := env.publisher.last()
	assert.Equal(t, models.EventTypeProductRelationChanged, event.EventType)
	assert.Equal(t, models.RelationExtra, event.Relation)
	assert.Equal(t, []int64{bouquet.ID}, event.RelatedIDs)
	assert.Subset(t, env.cache.invalidated, []int64{wedding.ID, bouquet.ID})

	// idempotent: no second event
	events := len(env.publisher.events)
	_, err = env.svc.AddExtra(ctx, wedding.ID, bouquet.ID)
	require.NoError(t, err)
	assert.Len(t, env.publisher.events, events)

	_, err = env.svc.RemoveExtra(ctx, wedding.ID, bouquet.ID)
	require.NoError(t, err)
	gotBouquet, err = env.svc.GetProduct(ctx, bouquet.ID)
	require.NoError(t, err)
	assert.Empty(t, gotBouquet.ServedAsExtraFor)
	gotWedding, err := env.svc.GetProduct(ctx, wedding.ID)
	require.NoError(t, err)
	assert.Empty(t, gotWedding.Extras)
}

func TestRelationErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	simple := env.create(t, "Eenvoudig Trouwen", "simpel")
	other := env.create(t, "Bruidsboeket", "simpel")

	_, err := env.svc.AddExtra(ctx, simple.ID, simple.ID)
	assert.ErrorIs(t, err, models.ErrSelfReference)

	_, err = env.svc.AddSetMember(ctx, simple.ID, other.ID)
	assert.ErrorIs(t, err, models.ErrTypeConstraint)

	_, err = env.svc.AddVariation(ctx, simple.ID, other.ID)
	assert.ErrorIs(t, err, models.ErrTypeConstraint)

	_, err = env.svc.AddExtra(ctx, simple.ID, 404)
	assert.True(t, models.IsProductNotFoundError(err))
}

func TestSetMembershipCycles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.create(t, "Pakket groot", "samengesteld")
	b := env.create(t, "Pakket middel", "samengesteld")
	c := env.create(t, "Pakket klein", "samengesteld")

	_, err := env.svc.AddSetMember(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = env.svc.AddSetMember(ctx, b.ID, c.ID)
	require.NoError(t, err)

	_, err = env.svc.AddSetMember(ctx, b.ID, a.ID)
	assert.ErrorIs(t, err, models.ErrRelationCycle)

	_, err = env.svc.AddSetMember(ctx, c.ID, a.ID)
	assert.ErrorIs(t, err, models.ErrRelationCycle)

	gotC, err := env.svc.GetProduct(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, gotC.ComposedOf)
	assert.Equal(t, models.IDSet{b.ID}, gotC.PartOfSet)

	_, err = env.svc.RemoveSetMember(ctx, b.ID, c.ID)
	require.NoError(t, err)
	gotC, err = env.svc.GetProduct(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, gotC.PartOfSet)
}

func TestVariations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shirt := env.create(t, "Trouwshirt", "variabel")
	dress := env.create(t, "Trouwjurk", "variabel")
	red := env.create(t, "Trouwshirt rood", "simpel")

	_, err := env.svc.AddVariation(ctx, shirt.ID, red.ID)
	require.NoError(t, err)

	gotRed, err := env.svc.GetProduct(ctx, red.ID)
	require.NoError(t, err)
	require.NotNil(t, gotRed.ParentID)
	assert.Equal(t, shirt.ID, *gotRed.ParentID)

	_, err = env.svc.AddVariation(ctx, dress.ID, red.ID)
	assert.ErrorIs(t, err, models.ErrParentAlreadySet)

	owner, err := env.svc.RemoveVariation(ctx, shirt.ID, red.ID)
	require.NoError(t, err)
	assert.Empty(t, owner.Variations)
	gotRed, err = env.svc.GetProduct(ctx, red.ID)
	require.NoError(t, err)
	assert.Nil(t, gotRed.ParentID)
}

func TestRemoveVariationAfterReparent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.create(t, "Trouwshirt", "variabel")
	c := env.create(t, "Trouwjurk", "variabel")
	b := env.create(t, "Variant blauw", "simpel")

	_, err := env.svc.AddVariation(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = env.svc.SetParent(ctx, b.ID, &c.ID)
	require.NoError(t, err)

	_, err = env.svc.RemoveVariation(ctx, a.ID, b.ID)
	require.NoError(t, err)

	gotB, err := env.svc.GetProduct(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, gotB.ParentID)
	assert.Equal(t, c.ID, *gotB.ParentID)
}

func TestSetParent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	oldParent := env.create(t, "Trouwshirt", "variabel")
	newParent := env.create(t, "Trouwjurk", "variabel")
	child := env.create(t, "Variant blauw", "simpel")

	_, err := env.svc.SetParent(ctx, child.ID, &oldParent.ID)
	require.NoError(t, err)

	moved, err := env.svc.SetParent(ctx, child.ID, &newParent.ID)
	require.NoError(t, err)
	assert.Equal(t, newParent.ID, *moved.ParentID)

	gotOld, err := env.svc.GetProduct(ctx, oldParent.ID)
	require.NoError(t, err)
	assert.Empty(t, gotOld.Variations)
	gotNew, err := env.svc.GetProduct(ctx, newParent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IDSet{child.ID}, gotNew.Variations)

	event := env.publisher.last()
	assert.Equal(t, models.RelationParent, event.Relation)
	assert.ElementsMatch(t, []int64{oldParent.ID, newParent.ID}, event.RelatedIDs)

	detached, err := env.svc.SetParent(ctx, child.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, detached.ParentID)
	gotNew, err = env.svc.GetProduct(ctx, newParent.ID)
	require.NoError(t, err)
	assert.Empty(t, gotNew.Variations)

	_, err = env.svc.SetParent(ctx, child.ID, &child.ID)
	assert.ErrorIs(t, err, models.ErrSelfReference)

	_, err = env.svc.SetParent(ctx, newParent.ID, &child.ID)
	assert.ErrorIs(t, err, models.ErrTypeConstraint)
}

func TestParentChainCycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.create(t, "Collectie", "variabel")
	b := env.create(t, "Subcollectie", "variabel")
	c := env.create(t, "Subsubcollectie", "variabel")

	_, err := env.svc.AddVariation(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = env.svc.AddVariation(ctx, b.ID, c.ID)
	require.NoError(t, err)

	_, err = env.svc.AddVariation(ctx, c.ID, a.ID)
	assert.ErrorIs(t, err, models.ErrRelationCycle)

	_, err = env.svc.SetParent(ctx, a.ID, &c.ID)
	assert.ErrorIs(t, err, models.ErrRelationCycle)

	gotA, err := env.svc.GetProduct(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, gotA.ParentID)
}

func TestGroups(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.create(t, "Eenvoudig Trouwen", "simpel")

	got, err := env.svc.AddGroup(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, models.IDSet{3}, got.Groups)

	got, err = env.svc.RemoveGroup(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.Empty(t, got.Groups)
	assert.Equal(t, models.RelationGroup, env.publisher.last().Relation)
}
