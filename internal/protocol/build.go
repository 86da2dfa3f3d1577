package protocol

import (
	"lifegen.ai/internal/genes/sprite"
	"lifegen.ai/internal/lab/nursery"
)

// GenomeFrom builds the GENOME frame for a held genome and its sprite view.
func GenomeFrom(b nursery.Birth, v sprite.View, requestID string) GenomeMsg {
	traits := b.DNA.Traits()
	refs := make([]TraitRef, 0, len(traits))
	for _, t := range traits {
		refs = append(refs, TraitRef{Name: t.Name, Value: t.Value})
	}
	entries := v.Entries()
	sp := make([]SpriteEntry, 0, len(entries))
	for _, e := range entries {
		sp = append(sp, SpriteEntry{Name: e.Name, Display: e.Display})
	}
	return GenomeMsg{
		Type:            TypeGenome,
		ProtocolVersion: Version,
		RequestID:       requestID,
		GenomeID:        b.ID,
		MotherID:        b.MotherID,
		FatherID:        b.FatherID,
		Code:            b.Code,
		Traits:          refs,
		Sprite:          sp,
	}
}

func ErrorFrom(code, message, requestID string) ErrorMsg {
	return ErrorMsg{
		Type:            TypeError,
		ProtocolVersion: Version,
		RequestID:       requestID,
		Code:            code,
		Message:         message,
	}
}
