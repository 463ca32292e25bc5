package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/services"
	"github.com/dmitrijs2005/gophsync/internal/client/transfer"
	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/models"
)

// fail prints err for the user and returns it. Validation errors are shown
// as-is; anything else is also logged.
func (a *App) fail(ctx context.Context, op string, err error) error {
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		fmt.Fprintf(a.out, "%s: %s %s\n", op, ve.Field, ve.Reason)
		return err
	}
	fmt.Fprintf(a.out, "%s failed: %v\n", op, err)
	a.logger.Error(ctx, op+" failed", "error", err)
	return err
}

func (a *App) Status(ctx context.Context) error {
	writeStatus(a.out, a.svc.GetStatus(ctx))
	return nil
}

func writeStatus(w io.Writer, st services.Status) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "state\t%s\n", st.State)
	fmt.Fprintf(tw, "network reachable\t%t\n", st.NetworkReachable)
	fmt.Fprintf(tw, "local store ready\t%t\n", st.LocalReady)
	fmt.Fprintf(tw, "pending changes\t%d\n", st.PendingCount)
	fmt.Fprintf(tw, "pending deletes\t%d\n", st.PendingDeletes)
	if !st.LastSyncAt.IsZero() {
		fmt.Fprintf(tw, "last sync\t%s\n", st.LastSyncAt.Local().Format(time.DateTime))
	}
	fmt.Fprintf(tw, "message\t%s\n", st.Message)
	_ = tw.Flush()
}

// readInput prompts for every editable field. When editing, an empty answer
// keeps the value from prev.
func (a *App) readInput(prev *models.Entity) (services.EntityInput, error) {
	var in services.EntityInput
	if prev != nil {
		in.Payload = prev.Payload
		fmt.Fprintln(a.out, "Editing; leave a field empty to keep it.")
	}

	title, err := GetSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return in, err
	}
	body, err := GetMultiline(a.reader, "Body", a.out)
	if err != nil {
		return in, err
	}
	tags, err := GetSimpleText(a.reader, "Tags (comma separated)", a.out)
	if err != nil {
		return in, err
	}
	prio, err := GetSimpleText(a.reader, "Priority (low, medium, high)", a.out)
	if err != nil {
		return in, err
	}
	pinned, err := GetSimpleText(a.reader, "Pinned? (y/n)", a.out)
	if err != nil {
		return in, err
	}
	attrs, err := GetAttributes(a.reader, a.out)
	if err != nil {
		return in, common.Invalid("attributes", "%v", err)
	}

	if title != "" || prev == nil {
		in.Title = title
	}
	if body != "" {
		in.Body = body
	}
	if tags != "" {
		in.Tags = ParseTags(tags)
	}
	switch strings.ToLower(pinned) {
	case "y", "yes":
		in.Pinned = true
	case "n", "no":
		in.Pinned = false
	}
	if attrs != nil {
		in.Attributes = attrs
	}
	if prio != "" {
		p, err := models.ParsePriority(prio)
		if err != nil {
			return in, common.Invalid("priority", "%v", err)
		}
		in.Priority = p
	}
	return in, nil
}

func (a *App) New(ctx context.Context) error {
	in, err := a.readInput(nil)
	if err != nil {
		return a.fail(ctx, "new", err)
	}
	e, err := a.svc.CreateEntity(ctx, in)
	if err != nil {
		return a.fail(ctx, "new", err)
	}
	fmt.Fprintf(a.out, "Created %s\n", e.ID)
	return nil
}

func (a *App) Edit(ctx context.Context, id string) error {
	prev, err := a.svc.GetEntity(ctx, id)
	if err != nil {
		return a.fail(ctx, "edit", err)
	}
	in, err := a.readInput(prev)
	if err != nil {
		return a.fail(ctx, "edit", err)
	}
	e, err := a.svc.UpdateEntity(ctx, id, in)
	if err != nil {
		return a.fail(ctx, "edit", err)
	}
	fmt.Fprintf(a.out, "Updated %s (revision %d)\n", e.ID, e.Revision)
	return nil
}

func (a *App) Delete(ctx context.Context, id string) error {
	if err := a.svc.DeleteEntity(ctx, id); err != nil {
		return a.fail(ctx, "rm", err)
	}
	fmt.Fprintf(a.out, "Deleted %s\n", id)
	return nil
}

func syncMark(s models.SyncState) string {
	if s == models.SyncStateSynced {
		return " "
	}
	return "*"
}

func writeEntities(w io.Writer, list []models.Entity) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No notes.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, " \tID\tTITLE\tPRIORITY\tUPDATED")
	for _, e := range list {
		title := e.Title
		if e.Pinned {
			title = "[pinned] " + title
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			syncMark(e.SyncState), e.ID, title, e.SyncPriority, e.UpdatedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
	fmt.Fprintln(w, "(* = not replicated yet)")
}

func (a *App) List(ctx context.Context) error {
	list, err := a.svc.ListEntities(ctx)
	if err != nil {
		return a.fail(ctx, "list", err)
	}
	writeEntities(a.out, list)
	return nil
}

func (a *App) Search(ctx context.Context, query string) error {
	list, err := a.svc.SearchEntities(ctx, query)
	if err != nil {
		return a.fail(ctx, "search", err)
	}
	writeEntities(a.out, list)
	return nil
}

func (a *App) Show(ctx context.Context, id string) error {
	e, err := a.svc.GetEntity(ctx, id)
	if err != nil {
		return a.fail(ctx, "show", err)
	}
	atts, err := a.svc.ListAttachments(ctx, id)
	if err != nil {
		return a.fail(ctx, "show", err)
	}
	writeEntity(a.out, e, atts)
	return nil
}

func writeEntity(w io.Writer, e *models.Entity, atts []models.Attachment) {
	fmt.Fprintf(w, "%s\n%s\n", e.Title, strings.Repeat("-", len(e.Title)))
	if e.Body != "" {
		fmt.Fprintln(w, e.Body)
	}
	if len(e.Tags) > 0 {
		fmt.Fprintf(w, "tags: %s\n", strings.Join(e.Tags, ", "))
	}
	if len(e.Attributes) > 0 {
		keys := make([]string, 0, len(e.Attributes))
		for k := range e.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s = %v\n", k, e.Attributes[k])
		}
	}
	fmt.Fprintf(w, "priority %s, %s, revision %d\n", e.SyncPriority, e.SyncState, e.Revision)
	if len(atts) > 0 {
		fmt.Fprintln(w, "files:")
		writeAttachments(w, atts)
	}
}

func writeAttachments(w io.Writer, atts []models.Attachment) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, att := range atts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d bytes\t%s\n",
			syncMark(att.SyncState), att.ID, att.OriginalName, att.SizeBytes, att.IntegrityHash)
	}
	_ = tw.Flush()
}

// Upload stores a file. Small files are saved inline; larger ones run in the
// background so the transfer can be cancelled from the prompt.
func (a *App) Upload(ctx context.Context, path, ownerID string) error {
	info, err := os.Stat(path)
	if err != nil {
		return a.fail(ctx, "upload", common.IOError("stat", err))
	}
	opts := services.UploadOptions{OwnerID: ownerID}

	if a.files.Config().Strategy(info.Size()) == transfer.KindBuffered {
		att, err := a.svc.UploadFile(ctx, path, "", opts, nil)
		if err != nil {
			return a.fail(ctx, "upload", err)
		}
		fmt.Fprintf(a.out, "Stored %s as %s\n", att.OriginalName, att.ID)
		return nil
	}

	var once sync.Once
	onProgress := func(p transfer.Progress) {
		once.Do(func() {
			fmt.Fprintf(a.out, "%s upload started, session %s (use 'cancel %s')\n", p.Kind, p.SessionID, p.SessionID)
		})
	}
	go func() {
		att, err := a.svc.UploadFile(ctx, path, "", opts, onProgress)
		if err != nil {
			_ = a.fail(ctx, "upload "+path, err)
			return
		}
		fmt.Fprintf(a.out, "\nStored %s as %s\n", att.OriginalName, att.ID)
	}()
	return nil
}

func (a *App) Files(ctx context.Context, ownerID string) error {
	atts, err := a.svc.ListAttachments(ctx, ownerID)
	if err != nil {
		return a.fail(ctx, "files", err)
	}
	if len(atts) == 0 {
		fmt.Fprintln(a.out, "No files.")
		return nil
	}
	writeAttachments(a.out, atts)
	return nil
}

func (a *App) DeleteFile(ctx context.Context, id string) error {
	if err := a.svc.DeleteAttachment(ctx, id); err != nil {
		return a.fail(ctx, "rmfile", err)
	}
	fmt.Fprintf(a.out, "Deleted file %s\n", id)
	return nil
}

func (a *App) Cancel(ctx context.Context, sessionID string) error {
	ok, err := a.svc.CancelTransfer(sessionID)
	if err != nil {
		return a.fail(ctx, "cancel", err)
	}
	if ok {
		fmt.Fprintf(a.out, "Cancelled %s\n", sessionID)
	} else {
		fmt.Fprintf(a.out, "%s was already cancelled\n", sessionID)
	}
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	writeStatus(a.out, a.svc.ForceSync(ctx))
	return nil
}

// Meta prints the sync bookkeeping, or forgets it when reset is set.
func (a *App) Meta(ctx context.Context, reset bool) error {
	if reset {
		n, err := a.svc.ResetSyncBookkeeping(ctx)
		if err != nil {
			return a.fail(ctx, "meta clear", err)
		}
		fmt.Fprintf(a.out, "Cleared %d entries.\n", n)
		return nil
	}

	list, err := a.svc.SyncBookkeeping(ctx)
	if err != nil {
		return a.fail(ctx, "meta", err)
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No sync bookkeeping.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Key, e.Value, e.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
