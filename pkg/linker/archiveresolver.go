package linker

import (
	"rvld/pkg/errs"
	"rvld/pkg/model"
	"rvld/pkg/utils"
)

// resolveArchives implements spec.md §4.1: it partitions objs into
// ordinary objects (kept unconditionally) and archives (held in
// reserve), seeds the resolved/undefined name sets from the ordinary
// objects, then pulls archive members to a fixed point.
func resolveArchives(objs []*model.Object) ([]*model.Object, error) {
	var participants []*model.Object
	var archives []*model.Object

	resolved := make(map[string]bool)
	undefined := make(map[string]bool)

	for _, obj := range objs {
		if obj.Kind == model.ObjectArchive {
			archives = append(archives, obj)
			continue
		}
		participants = append(participants, obj)
		updateDemand(obj, resolved, undefined)
	}

	for {
		changed := false
		exhausted := make(map[*model.Object]bool)

		for _, archive := range archives {
			for _, member := range archive.Members {
				if !definesAnyOf(member, undefined) {
					continue
				}
				participants = append(participants, member)
				updateDemand(member, resolved, undefined)
				exhausted[archive] = true
				changed = true
			}
		}

		// An archive any member was pulled from this pass is removed to
		// prevent revisits, per spec.md §4.1.
		archives = utils.RemoveIf(archives, func(a *model.Object) bool {
			return exhausted[a]
		})
		if !changed {
			break
		}
	}

	if len(participants) == 0 {
		return nil, errs.New(errs.NoInput, "no participating objects")
	}

	return participants, nil
}

// isGlobalEligible reports whether sym is a candidate for the global
// resolved/undefined demand sets: not local, not dot-prefixed, and
// named.
func isGlobalEligible(sym model.Symbol) bool {
	return sym.Name != "" && sym.Binding != model.BindLocal && !isLocalName(sym.Name)
}

// updateDemand folds obj's symbols into resolved/undefined exactly as
// spec.md §4.1 describes seeding and post-pull updates: every
// globally-eligible defined name is resolved (and no longer
// undefined); every undefined reference not already resolved joins
// undefined.
func updateDemand(obj *model.Object, resolved, undefined map[string]bool) {
	for _, sym := range obj.Symbols {
		if !isGlobalEligible(sym) {
			continue
		}
		if sym.Binding == model.BindUndefined {
			if !resolved[sym.Name] {
				undefined[sym.Name] = true
			}
			continue
		}
		resolved[sym.Name] = true
		delete(undefined, sym.Name)
	}
}

// definesAnyOf reports whether member defines (with non-undefined,
// globally-eligible binding) any name currently in undefined.
func definesAnyOf(member *model.Object, undefined map[string]bool) bool {
	for _, sym := range member.Symbols {
		if !isGlobalEligible(sym) || sym.Binding == model.BindUndefined {
			continue
		}
		if undefined[sym.Name] {
			return true
		}
	}
	return false
}
