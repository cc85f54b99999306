package blocks

import (
	"encoding/json"
	"testing"
)

func TestPresets(t *testing.T) {
	for _, name := range []string{PresetBusiness, PresetPortfolio, PresetRestaurant} {
		content, ok := Preset(name)
		if !ok {
			t.Fatalf("Preset(%q) not found", name)
		}
		if len(content.Blocks) == 0 {
			t.Errorf("preset %q has no blocks", name)
		}
		if content.Theme.Primary == "" {
			t.Errorf("preset %q has no primary color", name)
		}
		if err := Validate(content); err != nil {
			t.Errorf("preset %q failed validation: %v", name, err)
		}
		for i, b := range content.Blocks {
			if b.Order != i {
				t.Errorf("preset %q block %d has order %d", name, i, b.Order)
			}
			if b.ID == "" {
				t.Errorf("preset %q block %d has empty id", name, i)
			}
		}
	}
}

func TestPreset_Unknown(t *testing.T) {
	if _, ok := Preset("blog"); ok {
		t.Error("Preset(blog) should not exist")
	}
}

func TestValidate_UnknownType(t *testing.T) {
	content := &SiteContent{
		Blocks: []Block{
			{ID: "a", Type: "carousel", Order: 0, Data: json.RawMessage(`{}`)},
		},
	}
	if err := Validate(content); err == nil {
		t.Error("Validate should reject unknown block type")
	}
}

func TestValidate_MissingID(t *testing.T) {
	content := &SiteContent{
		Blocks: []Block{
			{Type: TypeHero, Order: 0, Data: json.RawMessage(`{}`)},
		},
	}
	if err := Validate(content); err == nil {
		t.Error("Validate should reject block with empty id")
	}
}

func TestValidate_BadData(t *testing.T) {
	content := &SiteContent{
		Blocks: []Block{
			{ID: "a", Type: TypeHero, Order: 0, Data: json.RawMessage(`"not an object"`)},
		},
	}
	if err := Validate(content); err == nil {
		t.Error("Validate should reject data that does not decode")
	}
}
