// Package launchbar renders records as LaunchBar items.
package launchbar

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/dtbar/internal/errors"
	"github.com/hpungsan/dtbar/internal/record"
)

// DefaultAction is the action script bundled next to the items.
const DefaultAction = "action.sh"

const (
	tagIcon     = "tag.icns"
	unknownIcon = "unknown.icns"
	folderMark  = "📂"
)

// Item is one LaunchBar result row.
type Item struct {
	Title                  string `json:"title"`
	Badge                  string `json:"badge,omitempty"`
	Icon                   string `json:"icon,omitempty"`
	Subtitle               string `json:"subtitle,omitempty"`
	AlwaysShowsSubtitle    bool   `json:"alwaysShowsSubtitle,omitempty"`
	QuickLookURL           string `json:"quickLookURL,omitempty"`
	Path                   string `json:"path,omitempty"`
	Action                 string `json:"action,omitempty"`
	ActionArgument         string `json:"actionArgument,omitempty"`
	ActionReturnsItems     bool   `json:"actionReturnsItems,omitempty"`
	ActionRunsInBackground bool   `json:"actionRunsInBackground,omitempty"`
}

// PickedRecord is the record summary carried in an action argument.
type PickedRecord struct {
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	Kind     string `json:"kind,omitempty"`
	Location string `json:"location,omitempty"`
	Type     string `json:"type,omitempty"`
	Path     string `json:"path,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// IsGroup reports whether the picked record is a group or smart group.
func (p PickedRecord) IsGroup() bool {
	return p.Type == record.TypeGroup || p.Type == record.TypeSmartGroup
}

// ActionArgument is passed back to the action script when an item is chosen.
type ActionArgument struct {
	PickedRecord           PickedRecord `json:"pickedRecord"`
	PickedUUID             string       `json:"pickedUuid"`
	CandidateUUIDs         []string     `json:"candidateUuids"`
	ReturnKeyToBrowseGroup bool         `json:"returnKeyToBrowseGroup"`
}

// ParseActionArgument decodes an action argument produced by Formatter.
func ParseActionArgument(s string) (*ActionArgument, error) {
	var arg ActionArgument
	if err := json.Unmarshal([]byte(s), &arg); err != nil {
		return nil, errors.NewInvalidRequest("invalid action argument: " + err.Error())
	}
	if arg.PickedUUID == "" {
		arg.PickedUUID = arg.PickedRecord.UUID
	}
	if arg.PickedUUID == "" {
		return nil, errors.NewInvalidRequest("action argument has no picked uuid")
	}
	return &arg, nil
}

// Formatter turns records into items.
type Formatter struct {
	// ResourcesPath is the directory holding <type>.icns icons.
	ResourcesPath string

	// Action is the script LaunchBar runs when an item is chosen.
	Action string
}

// Items formats records in order. Every item carries all candidate uuids.
func (f Formatter) Items(records []record.Record, returnKeyToBrowseGroup bool) ([]Item, error) {
	candidates := record.UUIDs(records)
	items := make([]Item, 0, len(records))
	for _, r := range records {
		item, err := f.Item(r, candidates, returnKeyToBrowseGroup)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Item formats one record.
func (f Formatter) Item(r record.Record, candidates []string, returnKeyToBrowseGroup bool) (Item, error) {
	picked := PickedRecord{
		UUID:     r.UUID,
		Name:     r.Name,
		Kind:     r.Kind,
		Location: r.Location,
		Type:     r.Type,
		Path:     r.Path,
		Filename: r.Filename,
	}
	if candidates == nil {
		candidates = []string{}
	}
	arg, err := json.Marshal(ActionArgument{
		PickedRecord:           picked,
		PickedUUID:             r.UUID,
		CandidateUUIDs:         candidates,
		ReturnKeyToBrowseGroup: returnKeyToBrowseGroup,
	})
	if err != nil {
		return Item{}, errors.NewInternal(err)
	}

	action := f.Action
	if action == "" {
		action = DefaultAction
	}

	item := Item{
		Title:               r.Name,
		Badge:               r.Kind,
		Icon:                f.Icon(r),
		Subtitle:            folderMark + ReadablePath(r.Location),
		AlwaysShowsSubtitle: true,
		Action:              action,
		ActionArgument:      string(arg),
	}
	if r.IsGroup() {
		item.ActionReturnsItems = true
		return item, nil
	}
	item.QuickLookURL = (&url.URL{Scheme: "file", Path: r.Path}).String()
	item.Path = r.Path
	item.ActionRunsInBackground = true
	return item, nil
}

// ErrorItem renders err as a single item so LaunchBar shows what went wrong.
func ErrorItem(err error) Item {
	item := Item{Title: err.Error(), Icon: unknownIcon}
	if dtErr, ok := errors.As(err); ok {
		item.Title = dtErr.Message
		item.Badge = string(dtErr.Code)
	}
	return item
}

// Icon picks the icon for r: the tag icon for tags, the file itself for
// pictures, <type>.icns when the resources directory has one, else the
// unknown icon.
func (f Formatter) Icon(r record.Record) string {
	typ := DisplayType(r)
	switch typ {
	case "tag":
		return tagIcon
	case "picture":
		return r.Path
	}
	candidate := filepath.Join(f.ResourcesPath, typ+".icns")
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	return filepath.Join(f.ResourcesPath, unknownIcon)
}

// DisplayType classifies r for icon lookup.
func DisplayType(r record.Record) string {
	ext := extension(r.Filename)
	switch {
	case strings.HasPrefix(r.Location, "/Tags"):
		return "tag"
	case ext == "doc" || ext == "docx":
		return "word document"
	case ext == "xls" || ext == "xlsx":
		return "excel document"
	case r.Type == "" || r.Type == "unknown":
		if ext != "" {
			return ext
		}
		return "unknown"
	default:
		return r.Type
	}
}

func extension(filename string) string {
	return strings.TrimPrefix(filepath.Ext(filename), ".")
}

// ReadablePath trims one leading and trailing slash and renders each
// unescaped slash as an arrow. Escaped slashes (\/) are kept as-is.
func ReadablePath(location string) string {
	s := strings.TrimPrefix(location, "/")
	if strings.HasSuffix(location, "/") {
		s = strings.TrimSuffix(s, "/")
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '/' && (i == 0 || s[i-1] != '\\') {
			b.WriteString("→")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
