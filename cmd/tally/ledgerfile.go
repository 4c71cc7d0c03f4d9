package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/tally"
	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// ledgerFile is the on-disk YAML form of a set of groups and their
// entries. Amounts are decimal strings in the group currency.
type ledgerFile struct {
	Groups []fileGroup `yaml:"groups"`
}

type fileGroup struct {
	ID       string      `yaml:"id,omitempty"`
	Name     string      `yaml:"name"`
	Currency string      `yaml:"currency"`
	Members  []string    `yaml:"members"`
	Entries  []fileEntry `yaml:"entries,omitempty"`
}

type fileEntry struct {
	ID          string         `yaml:"id,omitempty"`
	Kind        string         `yaml:"kind"`
	Description string         `yaml:"description,omitempty"`
	At          time.Time      `yaml:"at,omitempty"`
	Payers      []fileShare    `yaml:"payers,omitempty"`
	Splits      []fileShare    `yaml:"splits,omitempty"`
	Settler     string         `yaml:"settler,omitempty"`
	Details     []fileShare    `yaml:"details,omitempty"`
	Transfers   []fileTransfer `yaml:"transfers,omitempty"`
}

type fileShare struct {
	Participant string `yaml:"participant"`
	Amount      string `yaml:"amount"`
}

type fileTransfer struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Amount string `yaml:"amount"`
}

func readLedgerFile(path string) (*ledgerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ledger file: %w", err)
	}
	var f ledgerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse ledger file %s: %w", path, err)
	}
	return &f, nil
}

func writeLedgerFile(path string, f *ledgerFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode ledger file: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write ledger file: %w", err)
	}
	return os.Rename(tmp, path)
}

// load records every group and entry of f through l, in file order, and
// returns the created groups in the same order.
func (f *ledgerFile) load(ctx context.Context, l *tally.Ledger) ([]*group.Group, error) {
	groups := make([]*group.Group, 0, len(f.Groups))
	for gi, fg := range f.Groups {
		g := &group.Group{
			Name:     fg.Name,
			Currency: fg.Currency,
			Members:  toParticipants(fg.Members),
		}
		if fg.ID != "" {
			groupID, err := id.ParseGroupID(fg.ID)
			if err != nil {
				return nil, fmt.Errorf("groups[%d].id: %w", gi, err)
			}
			g.ID = groupID
		}
		if err := l.CreateGroup(ctx, g); err != nil {
			return nil, fmt.Errorf("groups[%d] %q: %w", gi, fg.Name, err)
		}

		for ei, fe := range fg.Entries {
			e, err := fe.toEntry(g)
			if err != nil {
				return nil, fmt.Errorf("groups[%d].entries[%d]: %w", gi, ei, err)
			}
			if err := l.RecordEntry(ctx, e); err != nil {
				return nil, fmt.Errorf("groups[%d].entries[%d]: %w", gi, ei, err)
			}
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (fe fileEntry) toEntry(g *group.Group) (*entry.Entry, error) {
	e := &entry.Entry{
		GroupID:     g.ID,
		Kind:        entry.Kind(fe.Kind),
		Currency:    g.Currency,
		Description: fe.Description,
		Settler:     types.Participant(fe.Settler),
	}
	if fe.ID != "" {
		entryID, err := id.ParseEntryID(fe.ID)
		if err != nil {
			return nil, fmt.Errorf("id: %w", err)
		}
		e.ID = entryID
	}
	if !fe.At.IsZero() {
		e.Entity = types.Entity{CreatedAt: fe.At.UTC(), UpdatedAt: fe.At.UTC()}
	}

	var err error
	if e.Payers, err = parseShares(fe.Payers, g.Currency); err != nil {
		return nil, fmt.Errorf("payers: %w", err)
	}
	if e.Splits, err = parseShares(fe.Splits, g.Currency); err != nil {
		return nil, fmt.Errorf("splits: %w", err)
	}
	if e.Details, err = parseShares(fe.Details, g.Currency); err != nil {
		return nil, fmt.Errorf("details: %w", err)
	}
	for i, t := range fe.Transfers {
		m, err := types.ParseMoney(t.Amount, g.Currency)
		if err != nil {
			return nil, fmt.Errorf("transfers[%d]: %w", i, err)
		}
		e.Transfers = append(e.Transfers, entry.Transfer{
			From:   types.Participant(t.From),
			To:     types.Participant(t.To),
			Amount: m.Amount,
		})
	}
	return e, nil
}

// dump reads the groups back from l into file form, including any
// entries appended since load.
func dump(ctx context.Context, l *tally.Ledger, groups []*group.Group) (*ledgerFile, error) {
	f := &ledgerFile{Groups: make([]fileGroup, 0, len(groups))}
	for _, g := range groups {
		entries, err := l.ListEntries(ctx, g.ID, entry.ListOpts{})
		if err != nil {
			return nil, err
		}
		fg := fileGroup{
			ID:       g.ID.String(),
			Name:     g.Name,
			Currency: g.Currency,
			Members:  fromParticipants(g.Members),
			Entries:  make([]fileEntry, 0, len(entries)),
		}
		for _, e := range entries {
			fg.Entries = append(fg.Entries, fromEntry(e))
		}
		f.Groups = append(f.Groups, fg)
	}
	return f, nil
}

func fromEntry(e *entry.Entry) fileEntry {
	fe := fileEntry{
		ID:          e.ID.String(),
		Kind:        string(e.Kind),
		Description: e.Description,
		At:          e.CreatedAt,
		Payers:      formatShares(e.Payers, e.Currency),
		Splits:      formatShares(e.Splits, e.Currency),
		Settler:     string(e.Settler),
		Details:     formatShares(e.Details, e.Currency),
	}
	for _, t := range e.Transfers {
		fe.Transfers = append(fe.Transfers, fileTransfer{
			From:   string(t.From),
			To:     string(t.To),
			Amount: types.New(t.Amount, e.Currency).FormatMajor(),
		})
	}
	return fe
}

func parseShares(in []fileShare, currency string) ([]entry.Share, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]entry.Share, len(in))
	for i, s := range in {
		m, err := types.ParseMoney(s.Amount, currency)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = entry.Share{Participant: types.Participant(s.Participant), Amount: m.Amount}
	}
	return out, nil
}

func formatShares(in []entry.Share, currency string) []fileShare {
	if len(in) == 0 {
		return nil
	}
	out := make([]fileShare, len(in))
	for i, s := range in {
		out[i] = fileShare{Participant: string(s.Participant), Amount: types.New(s.Amount, currency).FormatMajor()}
	}
	return out
}

func toParticipants(ss []string) []types.Participant {
	out := make([]types.Participant, len(ss))
	for i, s := range ss {
		out[i] = types.Participant(s)
	}
	return out
}

func fromParticipants(ps []types.Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

// findGroup matches ref against group IDs first, then names.
func findGroup(groups []*group.Group, ref string) (*group.Group, error) {
	for _, g := range groups {
		if g.ID.String() == ref {
			return g, nil
		}
	}
	for _, g := range groups {
		if g.Name == ref {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", tally.ErrGroupNotFound, ref)
}
