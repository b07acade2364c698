package viewer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"lootwatch/internal/store"
)

// Mods matching these patterns lead the explicit section, in this order.
var modPriority = []*regexp.Regexp{
	regexp.MustCompile(`(?i)to maximum life`),
	regexp.MustCompile(`(?i)(cold|fire|lightning|physical|chaos) damage to attacks`),
	regexp.MustCompile(`(?i)to (strength|dexterity|intelligence)`),
	regexp.MustCompile(`(?i)% increased spell damage`),
	regexp.MustCompile(`(?i)% to all elemental resistances`),
}

type payloadProperty struct {
	Name        string  `json:"name"`
	Values      [][]any `json:"values"`
	DisplayMode int     `json:"displayMode"`
}

type payloadSocket struct {
	Group  int    `json:"group"`
	Colour string `json:"sColour"`
}

type payloadItem struct {
	Name          string            `json:"name"`
	TypeLine      string            `json:"typeLine"`
	BaseType      string            `json:"baseType"`
	Rarity        string            `json:"rarity"`
	Icon          string            `json:"icon"`
	ItemLevel     int               `json:"ilvl"`
	Identified    *bool             `json:"identified"`
	Corrupted     bool              `json:"corrupted"`
	Properties    []payloadProperty `json:"properties"`
	Requirements  []payloadProperty `json:"requirements"`
	EnchantMods   []string          `json:"enchantMods"`
	ImplicitMods  []string          `json:"implicitMods"`
	ExplicitMods  []string          `json:"explicitMods"`
	CraftedMods   []string          `json:"craftedMods"`
	FracturedMods []string          `json:"fracturedMods"`
	Sockets       []payloadSocket   `json:"sockets"`
	Influences    map[string]bool   `json:"influences"`
}

// Property is one label/value line of the tooltip.
type Property struct {
	Label string
	Value string
}

// Mod is one modifier line with its styling class.
type Mod struct {
	Text  string
	Class string
}

// ItemView is the template model for /item/{id}.
type ItemView struct {
	ID           string
	Header       []string
	RarityClass  string
	Icon         string
	Influences   []string
	Properties   []Property
	ItemLevel    int
	Requirements []Property
	Enchants     []Mod
	Implicits    []Mod
	Explicits    []Mod
	Unidentified bool
	Corrupted    bool
	SocketGroups [][]string
	LinkCount    int
	Seller       string
	Indexed      string
	Price        string
	StashTab     string
	StashPos     string
	HasArtifact  bool
}

// BuildItemView derives the tooltip model from a stored item.
func BuildItemView(item *store.Item) (ItemView, error) {
	var raw payloadItem
	if err := json.Unmarshal(item.RawPayload, &raw); err != nil {
		return ItemView{}, fmt.Errorf("decode payload %s: %w", item.ID, err)
	}

	view := ItemView{
		ID:          item.ID,
		Header:      header(raw),
		RarityClass: strings.ToLower(strings.TrimSpace(raw.Rarity)),
		Icon:        raw.Icon,
		ItemLevel:   raw.ItemLevel,
		Enchants:    mods(raw.EnchantMods, "enchant"),
		Implicits:   mods(raw.ImplicitMods, ""),
		Explicits:   explicitMods(raw),
		Corrupted:   raw.Corrupted,
		HasArtifact: item.HasArtifact,
	}
	view.Unidentified = raw.Identified != nil && !*raw.Identified
	for _, prop := range raw.Properties {
		view.Properties = append(view.Properties, property(prop))
	}
	for _, req := range raw.Requirements {
		view.Requirements = append(view.Requirements, Property{Label: req.Name, Value: firstValue(req.Values)})
	}
	for name, has := range raw.Influences {
		if has {
			view.Influences = append(view.Influences, name)
		}
	}
	sort.Strings(view.Influences)
	if len(raw.FracturedMods) > 0 {
		view.Influences = append(view.Influences, "fractured")
	}
	view.SocketGroups, view.LinkCount = socketGroups(raw.Sockets)

	if item.Listing != nil {
		view.Seller = item.Listing.Account
		view.Indexed = item.Listing.Indexed
		view.Price = item.Listing.Price
	}
	if item.Stash != nil {
		view.StashTab = item.Stash.TabName
		view.StashPos = item.Stash.Position
	}
	return view, nil
}

func header(raw payloadItem) []string {
	first := raw.Name
	if first == "" {
		first = raw.TypeLine
	}
	if first == "" {
		first = "N/A"
	}
	lines := []string{first}
	if !strings.EqualFold(raw.Rarity, "normal") && raw.BaseType != "" {
		second := strings.TrimSpace(raw.Rarity + " " + raw.BaseType)
		if second != first {
			lines = append(lines, second)
		}
	}
	return lines
}

func firstValue(values [][]any) string {
	if len(values) == 0 || len(values[0]) == 0 {
		return "N/A"
	}
	return fmt.Sprint(values[0][0])
}

func property(prop payloadProperty) Property {
	switch {
	case len(prop.Values) == 0:
		return Property{Label: prop.Name}
	case prop.DisplayMode == 3:
		label := prop.Name
		for i, value := range prop.Values {
			if len(value) == 0 {
				continue
			}
			label = strings.ReplaceAll(label, fmt.Sprintf("{%d}", i), fmt.Sprint(value[0]))
		}
		return Property{Label: label}
	default:
		return Property{Label: prop.Name, Value: firstValue(prop.Values)}
	}
}

func mods(lines []string, class string) []Mod {
	out := make([]Mod, 0, len(lines))
	for _, line := range lines {
		out = append(out, Mod{Text: line, Class: class})
	}
	return out
}

// explicitMods orders priority mods first, then the remaining explicit and
// fractured mods in payload order, then crafted mods.
func explicitMods(raw payloadItem) []Mod {
	type ranked struct {
		mod  Mod
		rank int
	}
	var all []ranked
	base := len(modPriority)
	for _, m := range append(mods(raw.ExplicitMods, ""), mods(raw.FracturedMods, "fractured")...) {
		rank := base
		for i, re := range modPriority {
			if re.MatchString(m.Text) {
				rank = i
				break
			}
		}
		all = append(all, ranked{mod: m, rank: rank})
	}
	for _, m := range mods(raw.CraftedMods, "crafted") {
		all = append(all, ranked{mod: m, rank: base + 1})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].rank < all[j].rank })

	out := make([]Mod, 0, len(all))
	for _, r := range all {
		out = append(out, r.mod)
	}
	return out
}

func socketGroups(sockets []payloadSocket) ([][]string, int) {
	if len(sockets) == 0 {
		return nil, 0
	}
	var groups [][]string
	prev := -1
	for _, socket := range sockets {
		if socket.Group != prev || len(groups) == 0 {
			groups = append(groups, nil)
			prev = socket.Group
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], socket.Colour)
	}
	links := 0
	for _, group := range groups {
		links = max(links, len(group))
	}
	return groups, links
}
