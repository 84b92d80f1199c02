package models

import "fmt"

// AddExtra registers extra as an add-on of p and p in extra's leverbaarBij.
// It reports whether either side changed.
func (p *Product) AddExtra(extra *Product) (bool, error) {
	if err := p.checkPeer(extra); err != nil {
		return false, err
	}
	a := p.Extras.insert(extra.ID)
	b := extra.ServedAsExtraFor.insert(p.ID)
	return a || b, nil
}

// RemoveExtra drops extra from p's extras and p from extra's leverbaarBij
func (p *Product) RemoveExtra(extra *Product) (bool, error) {
	if err := p.checkPeer(extra); err != nil {
		return false, err
	}
	a := p.Extras.delete(extra.ID)
	b := extra.ServedAsExtraFor.delete(p.ID)
	return a || b, nil
}

// AddSetMember adds member to the composite product p
func (p *Product) AddSetMember(member *Product) (bool, error) {
	if err := p.checkPeer(member); err != nil {
		return false, err
	}
	if p.Type != ProductTypeComposite {
		return false, fmt.Errorf("%w: set members require type %s, product %d is %s",
			ErrTypeConstraint, ProductTypeComposite, p.ID, p.Type)
	}
	if p.PartOfSet.Has(member.ID) {
		return false, fmt.Errorf("%w: product %d already contains product %d", ErrRelationCycle, member.ID, p.ID)
	}
	a := p.ComposedOf.insert(member.ID)
	b := member.PartOfSet.insert(p.ID)
	return a || b, nil
}

// RemoveSetMember removes member from the composite product p
func (p *Product) RemoveSetMember(member *Product) (bool, error) {
	if err := p.checkPeer(member); err != nil {
		return false, err
	}
	a := p.ComposedOf.delete(member.ID)
	b := member.PartOfSet.delete(p.ID)
	return a || b, nil
}

// AddVariation makes variation a variant of the variable product p and points
// its parent at p
func (p *Product) AddVariation(variation *Product) (bool, error) {
	if err := p.canAdopt(variation); err != nil {
		return false, err
	}
	if variation.ParentID != nil && *variation.ParentID != p.ID {
		return false, fmt.Errorf("%w: product %d is a variation of product %d",
			ErrParentAlreadySet, variation.ID, *variation.ParentID)
	}
	changed := p.Variations.insert(variation.ID)
	if variation.ParentID == nil {
		id := p.ID
		variation.ParentID = &id
		changed = true
	}
	return changed, nil
}

// RemoveVariation drops variation from p. The parent pointer is only cleared
// while it still refers to p.
func (p *Product) RemoveVariation(variation *Product) (bool, error) {
	if err := p.checkPeer(variation); err != nil {
		return false, err
	}
	changed := p.Variations.delete(variation.ID)
	if variation.ParentID != nil && *variation.ParentID == p.ID {
		variation.ParentID = nil
		changed = true
	}
	return changed, nil
}

// Reparent moves p from oldParent to newParent, updating both parents'
// variations. Either may be nil. oldParent must be the product p currently
// points at. Nothing is modified when the move is rejected.
func (p *Product) Reparent(oldParent, newParent *Product) (bool, error) {
	switch {
	case p.ParentID == nil && oldParent != nil:
		return false, fmt.Errorf("%w: product %d has no parent", ErrStaleParent, p.ID)
	case p.ParentID != nil && oldParent == nil:
		return false, fmt.Errorf("%w: product %d has parent %d", ErrStaleParent, p.ID, *p.ParentID)
	case p.ParentID != nil && oldParent.ID != *p.ParentID:
		return false, fmt.Errorf("%w: product %d has parent %d, not %d", ErrStaleParent, p.ID, *p.ParentID, oldParent.ID)
	}

	if oldParent == nil && newParent == nil {
		return false, nil
	}
	if oldParent != nil && newParent != nil && oldParent.ID == newParent.ID {
		return newParent.AddVariation(p)
	}
	if newParent != nil {
		if err := newParent.canAdopt(p); err != nil {
			return false, err
		}
	}

	changed := false
	if oldParent != nil {
		removed, err := oldParent.RemoveVariation(p)
		if err != nil {
			return false, err
		}
		changed = removed
	}
	if newParent != nil {
		added, err := newParent.AddVariation(p)
		if err != nil {
			return changed, err
		}
		changed = changed || added
	}
	return changed, nil
}

// AddGroup records membership of a catalog group
func (p *Product) AddGroup(groupID int64) bool {
	return p.Groups.insert(groupID)
}

// RemoveGroup drops membership of a catalog group
func (p *Product) RemoveGroup(groupID int64) bool {
	return p.Groups.delete(groupID)
}

// canAdopt checks everything AddVariation checks except an existing parent
func (p *Product) canAdopt(variation *Product) error {
	if err := p.checkPeer(variation); err != nil {
		return err
	}
	if p.Type != ProductTypeVariable {
		return fmt.Errorf("%w: variations require type %s, product %d is %s",
			ErrTypeConstraint, ProductTypeVariable, p.ID, p.Type)
	}
	if p.ParentID != nil && *p.ParentID == variation.ID {
		return fmt.Errorf("%w: product %d is the parent of product %d", ErrRelationCycle, variation.ID, p.ID)
	}
	return nil
}

func (p *Product) checkPeer(other *Product) error {
	if other == nil {
		return fmt.Errorf("%w: related product is nil", ErrUnsavedProduct)
	}
	if p.ID == 0 || other.ID == 0 {
		return ErrUnsavedProduct
	}
	if p == other || p.ID == other.ID {
		return fmt.Errorf("%w: product %d", ErrSelfReference, p.ID)
	}
	return nil
}
