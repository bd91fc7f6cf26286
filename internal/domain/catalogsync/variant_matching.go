package catalogsync

// VariantPair joins a source variant with the variant the target platform
// returned for it. Target is nil when no target variant could be matched.
type VariantPair struct {
	Source Variant
	Target *Variant
}

// PairVariants matches target variants back to source variants.
//
// Matching runs in three passes, each only considering targets not yet taken:
// by SKU (when unique on both sides), by option-value tuple, and finally by
// array position.
func PairVariants(source, target []Variant) []VariantPair {
	pairs := make([]VariantPair, len(source))
	used := make([]bool, len(target))
	matched := make([]bool, len(source))

	for i := range source {
		pairs[i].Source = source[i]
	}

	bySKU := uniqueIndex(target, func(v Variant) string { return v.SKU })
	sourceSKUs := uniqueIndex(source, func(v Variant) string { return v.SKU })
	for i, v := range source {
		if _, ok := sourceSKUs[v.SKU]; !ok {
			continue
		}
		if j, ok := bySKU[v.SKU]; ok && !used[j] {
			pairs[i].Target = &target[j]
			used[j], matched[i] = true, true
		}
	}

	byOptions := uniqueIndex(target, Variant.OptionKey)
	for i, v := range source {
		if matched[i] {
			continue
		}
		if j, ok := byOptions[v.OptionKey()]; ok && !used[j] {
			pairs[i].Target = &target[j]
			used[j], matched[i] = true, true
		}
	}

	for i := range source {
		if matched[i] || i >= len(target) || used[i] {
			continue
		}
		pairs[i].Target = &target[i]
		used[i], matched[i] = true, true
	}

	return pairs
}

// uniqueIndex maps non-empty keys that occur exactly once to their position
func uniqueIndex(variants []Variant, key func(Variant) string) map[string]int {
	idx := make(map[string]int, len(variants))
	dup := make(map[string]bool)
	for i, v := range variants {
		k := key(v)
		if k == "" {
			continue
		}
		if _, seen := idx[k]; seen {
			dup[k] = true
			continue
		}
		idx[k] = i
	}
	for k := range dup {
		delete(idx, k)
	}
	return idx
}

// BuildVariantMappings creates fresh mappings for a newly created product
func BuildVariantMappings(source Store, pairs []VariantPair) []VariantMapping {
	target := source.Other()
	mappings := make([]VariantMapping, 0, len(pairs))
	for _, p := range pairs {
		var m VariantMapping
		m.mirror(p.Source)
		m.setVariantID(source, p.Source.ID)
		m.setInventoryItemID(source, p.Source.InventoryItemID)
		m.SetInventoryQuantity(source, p.Source.InventoryQuantity)
		if p.Target != nil {
			m.setVariantID(target, p.Target.ID)
			m.setInventoryItemID(target, p.Target.InventoryItemID)
			m.SetInventoryQuantity(target, p.Target.InventoryQuantity)
		}
		mappings = append(mappings, m)
	}
	return mappings
}

// MergeVariantMappings folds an update into the existing mapping list.
//
// Existing mappings are matched by SKU, or by source variant ID when the SKU
// is empty. Mappings absent from the update are retained unchanged. Target
// identifiers already known are kept when the target response lacks them;
// the target quantity is taken whenever a target variant is present, zero included.
func MergeVariantMappings(existing []VariantMapping, source Store, pairs []VariantPair) []VariantMapping {
	target := source.Other()
	merged := make([]VariantMapping, len(existing))
	copy(merged, existing)

	for _, p := range pairs {
		idx := -1
		for i := range merged {
			if p.Source.SKU != "" && merged[i].SKU == p.Source.SKU {
				idx = i
				break
			}
			if p.Source.SKU == "" && p.Source.ID != "" && merged[i].VariantID(source) == p.Source.ID {
				idx = i
				break
			}
		}

		var m VariantMapping
		if idx >= 0 {
			m = merged[idx]
		}
		m.mirror(p.Source)
		m.setVariantID(source, p.Source.ID)
		m.setInventoryItemID(source, p.Source.InventoryItemID)
		m.SetInventoryQuantity(source, p.Source.InventoryQuantity)
		if p.Target != nil {
			if p.Target.ID != "" {
				m.setVariantID(target, p.Target.ID)
			}
			if p.Target.InventoryItemID != "" {
				m.setInventoryItemID(target, p.Target.InventoryItemID)
			}
			m.SetInventoryQuantity(target, p.Target.InventoryQuantity)
		}

		if idx >= 0 {
			merged[idx] = m
		} else {
			merged = append(merged, m)
		}
	}
	return merged
}
