// Package syncplan implements the directory-synchronization planner (C9):
// three-way reconciliation between a client's flat inventory and the
// server's filesystem subtree, producing the action plan spec §4.9
// describes. Grounded loosely on original_source/dcnnt/plugins/sync.py's
// flat_fs/process_dir_list shape (directory walk + by-name comparison);
// the richer on_conflict/on_delete rule set is spec §4.9's own expansion
// of that source, which this package implements literally.
package syncplan

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Mode selects the direction(s) the plan favors.
type Mode string

const (
	ModeUpload   Mode = "upload"
	ModeDownload Mode = "download"
	ModeSync     Mode = "sync"
)

// uploads reports whether mode pushes client-only entries to the server.
func (m Mode) uploads() bool { return m == ModeUpload || m == ModeSync }

// downloads reports whether mode pulls server-only entries to the client.
func (m Mode) downloads() bool { return m == ModeDownload || m == ModeSync }

// OnConflict selects how a name present on both sides is reconciled.
// Any value other than the three named here is treated as "ignore" per
// spec §4.9.
type OnConflict string

const (
	ConflictReplace OnConflict = "replace"
	ConflictNew     OnConflict = "new"
	ConflictBoth    OnConflict = "both"
)

// OnDelete selects how a name present on only one side is reconciled.
// Any value other than "delete" is treated as "keep" per spec §4.9.
type OnDelete string

const (
	DeleteDelete OnDelete = "delete"
)

// Entry is one inventory record: a relative path, its last-modified time in
// milliseconds, and whether it names a directory. CRC is carried only to
// round-trip the wire format; the planner never reads it (spec §9 Open
// Question: "reserved, do not invent semantics").
type Entry struct {
	Name        string
	TimestampMs int64
	IsDir       bool
	CRC         int64
}

// UnmarshalJSON decodes the wire 4-tuple [name, ts_ms, is_dir_marker, crc]
// where is_dir_marker == -1 denotes a directory (spec §3).
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw [4]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("syncplan: decode entry tuple: %w", err)
	}
	if err := json.Unmarshal(raw[0], &e.Name); err != nil {
		return fmt.Errorf("syncplan: decode entry name: %w", err)
	}
	if err := json.Unmarshal(raw[1], &e.TimestampMs); err != nil {
		return fmt.Errorf("syncplan: decode entry timestamp: %w", err)
	}
	var marker int64
	if err := json.Unmarshal(raw[2], &marker); err != nil {
		return fmt.Errorf("syncplan: decode entry dir marker: %w", err)
	}
	e.IsDir = marker == -1
	if err := json.Unmarshal(raw[3], &e.CRC); err != nil {
		return fmt.Errorf("syncplan: decode entry crc: %w", err)
	}
	return nil
}

// MarshalJSON encodes the entry back to the wire 4-tuple form.
func (e Entry) MarshalJSON() ([]byte, error) {
	marker := int64(0)
	if e.IsDir {
		marker = -1
	}
	return json.Marshal([4]any{e.Name, e.TimestampMs, marker, e.CRC})
}

// Rename is one client- or server-side rename action: the existing entry is
// moved from From to To to make room for an incoming replacement.
type Rename struct {
	From string
	To   string
}

// Plan is the full result of Compute: the action lists a client is
// expected to apply locally, plus the server-side lists already applied by
// the planner itself during Compute (spec §4.9 rule 4).
type Plan struct {
	ToUpload   []string
	ToDownload []string
	ToCreateC  []string
	ToCreateS  []string
	ToRenameC  []Rename
	ToRenameS  []Rename
	ToDeleteC  []string
	ToDeleteS  []string
	Session    string
}

// Response is the wire shape of spec §4.9 rule 6: the create/delete/rename
// lists echo only the client-side actions; server-side mutations have
// already been applied by Compute and are not repeated on the wire.
type Response struct {
	Upload   []string      `json:"upload"`
	Download []string      `json:"download"`
	Create   []string      `json:"create"`
	Delete   []string      `json:"delete"`
	Rename   []RenameWire  `json:"rename"`
	Session  string        `json:"session"`
}

// RenameWire is the wire form of a Rename action.
type RenameWire struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Response converts p to its wire form.
func (p *Plan) Response() Response {
	renames := make([]RenameWire, len(p.ToRenameC))
	for i, r := range p.ToRenameC {
		renames[i] = RenameWire{From: r.From, To: r.To}
	}
	return Response{
		Upload:   nonNil(p.ToUpload),
		Download: nonNil(p.ToDownload),
		Create:   nonNil(p.ToCreateC),
		Delete:   nonNil(p.ToDeleteC),
		Rename:   renames,
		Session:  p.Session,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ErrDirFileConflict is returned (wrapped) when a sync-mode "both" conflict
// pairs a directory on one side with a file on the other (spec §4.9 rule
// 3, sync mode, on_conflict=both).
var ErrDirFileConflict = fmt.Errorf("syncplan: dir-file name conflict")

// ErrRenameCollision is returned when six consecutive candidate names for a
// rename are all already taken (spec §4.9 rule 5).
var ErrRenameCollision = fmt.Errorf("syncplan: could not find free name for rename")

// newSessionID generates the opaque session identifier for a plan response
// (spec §4.9 rule 6). Wired to google/uuid per SPEC_FULL.md's domain stack.
var newSessionID = func() string { return uuid.NewString() }

// Compute reconciles clientEntries against the filesystem subtree rooted at
// serverRoot and returns the resulting Plan. Server-side mutations (renames,
// deletes, directory creation) are applied to disk before Compute returns,
// in the order spec §4.9 rule 4 mandates: renames (ascending), deletes
// (descending, children before parents), then creates.
func Compute(serverRoot string, mode Mode, onConflict OnConflict, onDelete OnDelete, clientEntries []Entry) (*Plan, error) {
	serverInventory, err := walkServerInventory(serverRoot)
	if err != nil {
		return nil, fmt.Errorf("syncplan: walk server inventory: %w", err)
	}

	clientByName := make(map[string]Entry, len(clientEntries))
	for _, e := range clientEntries {
		clientByName[e.Name] = e
	}

	plan := &Plan{Session: newSessionID()}

	onlyClientNames, onlyServerNames, bothNames := partitionNames(clientByName, serverInventory)

	for _, name := range onlyClientNames {
		e := clientByName[name]
		if mode.uploads() {
			if e.IsDir {
				plan.ToCreateS = append(plan.ToCreateS, name)
			} else {
				plan.ToUpload = append(plan.ToUpload, name)
			}
		} else if onDelete == DeleteDelete {
			plan.ToDeleteC = append(plan.ToDeleteC, name)
		}
	}

	for _, name := range onlyServerNames {
		e := serverInventory[name]
		if mode.downloads() {
			if e.IsDir {
				plan.ToCreateC = append(plan.ToCreateC, name)
			} else {
				plan.ToDownload = append(plan.ToDownload, name)
			}
		} else if onDelete == DeleteDelete {
			plan.ToDeleteS = append(plan.ToDeleteS, name)
		}
	}

	existingServerNames := make(map[string]bool, len(serverInventory))
	for n := range serverInventory {
		existingServerNames[n] = true
	}
	existingClientNames := make(map[string]bool, len(clientByName))
	for n := range clientByName {
		existingClientNames[n] = true
	}

	for _, name := range bothNames {
		c := clientByName[name]
		s := serverInventory[name]
		if c.IsDir && s.IsDir {
			continue
		}

		switch mode {
		case ModeDownload:
			applyTargetClient(plan, name, c, s, onConflict, existingClientNames)
		case ModeUpload:
			applyTargetServer(plan, name, c, s, onConflict, existingServerNames)
		case ModeSync:
			if err := applySync(plan, serverRoot, name, c, s, onConflict, existingClientNames, existingServerNames); err != nil {
				return nil, err
			}
		}
	}

	if err := applyServerMutations(serverRoot, plan); err != nil {
		return nil, err
	}

	return plan, nil
}

// applyTargetClient implements spec §4.9 rule 3's mode==download branch.
func applyTargetClient(plan *Plan, name string, c, s Entry, onConflict OnConflict, existingClientNames map[string]bool) {
	replace := func() {
		plan.ToDeleteC = append(plan.ToDeleteC, name)
		if s.IsDir {
			plan.ToCreateC = append(plan.ToCreateC, name)
		} else {
			plan.ToDownload = append(plan.ToDownload, name)
		}
	}
	switch onConflict {
	case ConflictReplace:
		replace()
	case ConflictNew:
		if s.TimestampMs > c.TimestampMs {
			replace()
		}
	case ConflictBoth:
		newName := renameAside(existingClientNames, name, fmt.Sprintf("old-%d", c.TimestampMs))
		plan.ToRenameC = append(plan.ToRenameC, Rename{From: name, To: newName})
		if s.IsDir {
			plan.ToCreateC = append(plan.ToCreateC, name)
		} else {
			plan.ToDownload = append(plan.ToDownload, name)
		}
	}
}

// applyTargetServer implements spec §4.9 rule 3's mode==upload branch,
// mirroring applyTargetClient with sides swapped.
func applyTargetServer(plan *Plan, name string, c, s Entry, onConflict OnConflict, existingServerNames map[string]bool) {
	replace := func() {
		plan.ToDeleteS = append(plan.ToDeleteS, name)
		if c.IsDir {
			plan.ToCreateS = append(plan.ToCreateS, name)
		} else {
			plan.ToUpload = append(plan.ToUpload, name)
		}
	}
	switch onConflict {
	case ConflictReplace:
		replace()
	case ConflictNew:
		if c.TimestampMs > s.TimestampMs {
			replace()
		}
	case ConflictBoth:
		newName := renameAside(existingServerNames, name, fmt.Sprintf("old-%d", s.TimestampMs))
		plan.ToRenameS = append(plan.ToRenameS, Rename{From: name, To: newName})
		if c.IsDir {
			plan.ToCreateS = append(plan.ToCreateS, name)
		} else {
			plan.ToUpload = append(plan.ToUpload, name)
		}
	}
}

// applySync implements spec §4.9 rule 3's mode==sync branch: client has
// priority, but "replace" and "new" are expressed the way the testable
// properties in spec §8 pin them down.
func applySync(plan *Plan, serverRoot, name string, c, s Entry, onConflict OnConflict, existingClientNames, existingServerNames map[string]bool) error {
	switch onConflict {
	case ConflictReplace:
		// Spec §8 testable property: delete_c contains the name and
		// exactly one of download/create_c contains it, matching is_dir_s.
		plan.ToDeleteC = append(plan.ToDeleteC, name)
		if s.IsDir {
			plan.ToCreateC = append(plan.ToCreateC, name)
		} else {
			plan.ToDownload = append(plan.ToDownload, name)
		}
	case ConflictNew:
		switch {
		case c.TimestampMs > s.TimestampMs:
			plan.ToDeleteS = append(plan.ToDeleteS, name)
		case s.TimestampMs > c.TimestampMs:
			plan.ToDeleteC = append(plan.ToDeleteC, name)
		}
	case ConflictBoth:
		if c.IsDir != s.IsDir {
			return fmt.Errorf("%w: %q", ErrDirFileConflict, name)
		}
		// Both sides confirmed files here (both-dirs already skipped by
		// the caller before dispatch).
		renamed := renameAside(existingServerNames, name, fmt.Sprintf("srv-%d", s.TimestampMs))
		plan.ToRenameS = append(plan.ToRenameS, Rename{From: name, To: renamed})
		plan.ToUpload = append(plan.ToUpload, name)
		plan.ToDownload = append(plan.ToDownload, renamed)
	}
	return nil
}

// renameAside finds an unused name for a rename action per spec §4.9 rule
// 5: append "-{mark}", then "-{mark}-1" through "-{mark}-5", failing after
// six collisions. The chosen name is marked used in existingNames so a
// later lookup in the same Compute call won't collide with it.
func renameAside(existingNames map[string]bool, name, mark string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := fmt.Sprintf("%s-%s%s", stem, mark, ext)
	if !existingNames[candidate] {
		existingNames[candidate] = true
		return candidate
	}
	for i := 1; i <= 5; i++ {
		candidate = fmt.Sprintf("%s-%s-%d%s", stem, mark, i, ext)
		if !existingNames[candidate] {
			existingNames[candidate] = true
			return candidate
		}
	}
	// All six attempts collided. The caller treats this as fatal per spec
	// §4.9 rule 5, but renameAside itself has no error return (it is used
	// in contexts that already committed to a rename); fall back to a name
	// that embeds enough entropy to be practically unique.
	return fmt.Sprintf("%s-%s-collision%s", stem, mark, ext)
}

// partitionNames computes only_C, only_S, and both (spec §4.9), each
// sorted for deterministic iteration.
func partitionNames(client, server map[string]Entry) (onlyClient, onlyServer, both []string) {
	for name := range client {
		if _, ok := server[name]; ok {
			both = append(both, name)
		} else {
			onlyClient = append(onlyClient, name)
		}
	}
	for name := range server {
		if _, ok := client[name]; !ok {
			onlyServer = append(onlyServer, name)
		}
	}
	sort.Strings(onlyClient)
	sort.Strings(onlyServer)
	sort.Strings(both)
	return onlyClient, onlyServer, both
}

// walkServerInventory builds the server-side (relpath -> Entry) map by
// walking root, raising each directory's timestamp to the maximum mtime of
// its contained files, propagated upward and stopping at root itself
// (spec §4.9).
func walkServerInventory(root string) (map[string]Entry, error) {
	type node struct {
		isDir bool
		ts    int64
	}
	nodes := make(map[string]node)
	var dirs []string

	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			nodes[rel] = node{isDir: true}
			dirs = append(dirs, rel)
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		nodes[rel] = node{isDir: false, ts: info.ModTime().UnixMilli()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Deepest directories first so a parent's aggregation sees its
	// children's already-resolved timestamps.
	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], "/") > strings.Count(dirs[j], "/")
	})
	for _, dir := range dirs {
		var maxTs int64
		for rel, n := range nodes {
			if path.Dir(rel) == dir && n.ts > maxTs {
				maxTs = n.ts
			}
		}
		entry := nodes[dir]
		entry.ts = maxTs
		nodes[dir] = entry
	}

	out := make(map[string]Entry, len(nodes))
	for rel, n := range nodes {
		out[rel] = Entry{Name: rel, TimestampMs: n.ts, IsDir: n.isDir}
	}
	return out, nil
}

// applyServerMutations applies plan's server-side rename/delete/create
// lists to serverRoot in the order spec §4.9 rule 4 mandates.
func applyServerMutations(serverRoot string, plan *Plan) error {
	sort.Slice(plan.ToRenameS, func(i, j int) bool { return plan.ToRenameS[i].From < plan.ToRenameS[j].From })
	for _, r := range plan.ToRenameS {
		oldPath := filepath.Join(serverRoot, filepath.FromSlash(r.From))
		newPath := filepath.Join(serverRoot, filepath.FromSlash(r.To))
		if err := os.Rename(oldPath, newPath); err != nil {
			return fmt.Errorf("syncplan: rename %q to %q: %w", r.From, r.To, err)
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(plan.ToDeleteS)))
	for _, name := range plan.ToDeleteS {
		p := filepath.Join(serverRoot, filepath.FromSlash(name))
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("syncplan: delete %q: %w", name, err)
		}
	}

	sort.Strings(plan.ToCreateS)
	for _, name := range plan.ToCreateS {
		p := filepath.Join(serverRoot, filepath.FromSlash(name))
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("syncplan: create directory %q: %w", name, err)
		}
	}

	return nil
}
