package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/feedvault/internal/backup"
	"github.com/dmitrijs2005/feedvault/internal/models"
)

const pageSize = 20

func (a *App) add(ctx context.Context) {
	amount, err := GetSimpleText(a.reader, "Amount", os.Stdout)
	if err != nil {
		log.Println(err.Error())
		return
	}
	note, err := GetSimpleText(a.reader, "Note", os.Stdout)
	if err != nil {
		log.Println(err.Error())
		return
	}

	item := models.FeedItem{
		Id:     uuid.NewString(),
		Date:   time.Now().UnixMilli(),
		TxHash: uuid.NewString(),
		Amount: amount,
		Note:   note,
	}
	if err := a.eng.Write(ctx, item); err != nil {
		log.Println(err.Error())
		return
	}
	fmt.Println("Added", item.Id)
}

func (a *App) list(ctx context.Context) {
	for _, item := range a.eng.GetFeedPage(ctx, pageSize, 0) {
		synced := " "
		if item.Sync {
			synced = "*"
		}
		fmt.Printf("%s %s  %s  %s  %s\n", synced, item.Id,
			time.UnixMilli(item.Date).Format(time.RFC3339), item.Amount, item.Note)
	}
}

func (a *App) show(ctx context.Context, id string) {
	item := a.eng.Read(ctx, id)
	if item == nil {
		fmt.Println("Not found:", id)
		return
	}
	fmt.Printf("%+v\n", *item)
}

func (a *App) sync(ctx context.Context) {
	if err := a.eng.Reconcile(ctx); err != nil {
		log.Println(err.Error())
		return
	}
	fmt.Println("Synchronized")
}

func (a *App) profile(ctx context.Context, args []string) {
	if len(args) == 2 {
		if err := a.eng.SetProfile(ctx, map[string]any{args[0]: args[1]}); err != nil {
			log.Println(err.Error())
		}
		return
	}

	profile, err := a.eng.GetProfile(ctx)
	if err != nil {
		log.Println(err.Error())
		return
	}
	for k, v := range profile {
		fmt.Printf("%s: %v\n", k, v)
	}
}

func (a *App) snapshotter(ctx context.Context) (*backup.Snapshotter, error) {
	if a.config.S3Bucket == "" {
		return nil, fmt.Errorf("no snapshot bucket configured")
	}
	objects, err := backup.NewClient(ctx, a.config)
	if err != nil {
		return nil, err
	}
	return backup.NewSnapshotter(objects, a.eng.Store(), a.gate, a.config.S3Bucket, a.eng.UserID(), a.log), nil
}

func (a *App) snapshot(ctx context.Context) {
	snap, err := a.snapshotter(ctx)
	if err != nil {
		log.Println(err.Error())
		return
	}
	key, err := snap.Upload(ctx)
	if err != nil {
		log.Println(err.Error())
		return
	}
	fmt.Println("Snapshot uploaded:", key)
}

func (a *App) restore(ctx context.Context, key string) {
	snap, err := a.snapshotter(ctx)
	if err != nil {
		log.Println(err.Error())
		return
	}
	n, err := snap.Restore(ctx, key)
	if err != nil {
		log.Println(err.Error())
		return
	}
	fmt.Printf("Restored %d items\n", n)
}

func (a *App) deleteAccount(ctx context.Context) {
	confirm, err := GetSimpleText(a.reader, "Type 'yes' to delete this account and all its data", os.Stdout)
	if err != nil || confirm != "yes" {
		fmt.Println("Aborted")
		return
	}
	if err := a.eng.DeleteAccount(ctx); err != nil {
		log.Println(err.Error())
		return
	}
	fmt.Println("Account data deleted")
}
