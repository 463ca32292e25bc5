package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophsync/internal/dbx"
	"github.com/dmitrijs2005/gophsync/internal/server/repositories/attachments"
	"github.com/dmitrijs2005/gophsync/internal/server/repositories/entities"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Entities(db dbx.DBTX) entities.Repository
	Attachments(db dbx.DBTX) attachments.Repository
}
