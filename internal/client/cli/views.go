package cli

import (
	"time"

	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/client/services"
)

// The types below shape what the REPL prints. They keep key material and
// ciphertext out of the output.

type slotView struct {
	Name  string  `yaml:"name"`
	Label string  `yaml:"label,omitempty"`
	Value *string `yaml:"value"`
}

type itemView struct {
	ID       string     `yaml:"id"`
	Label    string     `yaml:"label"`
	Template string     `yaml:"template,omitempty"`
	Own      bool       `yaml:"own"`
	ShareID  string     `yaml:"share_id,omitempty"`
	Slots    []slotView `yaml:"slots,omitempty"`
}

type connectionView struct {
	ID       string     `yaml:"id"`
	Name     string     `yaml:"name"`
	UserID   string     `yaml:"user_id"`
	Accepted *time.Time `yaml:"connected_at,omitempty"`
}

type shareView struct {
	ID          string `yaml:"id"`
	ItemID      string `yaml:"item_id"`
	SenderID    string `yaml:"sender_id,omitempty"`
	RecipientID string `yaml:"recipient_id"`
	SharingMode string `yaml:"sharing_mode"`
	Acceptance  string `yaml:"acceptance"`
}

type sharedItemView struct {
	Share              shareView `yaml:"share"`
	Item               itemView  `yaml:"item"`
	AwaitingAcceptance bool      `yaml:"awaiting_acceptance"`
}

type taskView struct {
	ID       string `yaml:"id"`
	WorkType string `yaml:"work_type"`
	TargetID string `yaml:"target_id"`
	State    string `yaml:"state"`
}

type tasksView struct {
	Outstanding services.OutstandingTasks `yaml:"outstanding"`
	Tasks       []taskView                `yaml:"tasks,omitempty"`
}

func newItemView(it models.Item, slots []models.DecryptedSlot) itemView {
	v := itemView{ID: it.ID, Label: it.Label, Template: it.Name, Own: it.Own, ShareID: it.ShareID}
	for _, s := range slots {
		v.Slots = append(v.Slots, slotView{Name: s.Name, Label: s.Label, Value: s.Value})
	}
	return v
}

func newShareView(s models.Share) shareView {
	return shareView{
		ID:          s.ID,
		ItemID:      s.ItemID,
		SenderID:    s.SenderID,
		RecipientID: s.RecipientID,
		SharingMode: string(s.SharingMode),
		Acceptance:  string(s.AcceptanceRequired),
	}
}

func newTaskViews(tasks []models.ClientTask) []taskView {
	out := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskView{ID: t.ID, WorkType: t.WorkType, TargetID: t.TargetID, State: string(t.State)})
	}
	return out
}
