package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/client/models"
	"github.com/dmitrijs2005/voxkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/voxkeeper/internal/client/services"
	"github.com/dmitrijs2005/voxkeeper/internal/logging"
	"golang.org/x/term"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

type Uploader interface {
	Submit(ctx context.Context, ownerID string, c models.Capture, opts services.SubmitOptions) (services.SubmitResult, error)
}

type Syncer interface {
	SyncNow(ctx context.Context, ownerID string) (models.PassReport, error)
}

type Sweeper interface {
	Sweep(ctx context.Context, ownerID string) (services.SweepReport, error)
}

type StatusSource interface {
	Current() models.SyncStatus
}

// Queue is the read side of the offline queue.
type Queue interface {
	List(ctx context.Context, ownerID string) ([]*models.PendingCapture, error)
	Count(ctx context.Context, ownerID string) (int, error)
}

// Marks records when maintenance last ran. Optional.
type Marks interface {
	Touch(ctx context.Context, ownerID string, key metadata.Key, at time.Time) error
	All(ctx context.Context, ownerID string) (map[metadata.Key]time.Time, error)
}

// Deps is everything the App drives. In and Out default to the process's
// stdin and stdout.
type Deps struct {
	OwnerID  string
	MaxBytes int64

	Uploader Uploader
	Syncer   Syncer
	Sweeper  Sweeper
	Status   StatusSource
	Queue    Queue
	Online   services.Online
	Marks    Marks

	In  io.Reader
	Out io.Writer
	Log logging.Logger
}

// App is the interactive client.
type App struct {
	owner    string
	maxBytes int64

	uploader Uploader
	syncer   Syncer
	sweeper  Sweeper
	status   StatusSource
	queue    Queue
	online   services.Online
	marks    Marks
	now      func() time.Time

	reader      *bufio.Reader
	out         io.Writer
	interactive bool
	log         logging.Logger
}

func NewApp(d Deps) *App {
	if d.In == nil {
		d.In = os.Stdin
	}
	interactive := false
	if d.Out == nil {
		d.Out = os.Stdout
		interactive = isTerminal(int(os.Stdout.Fd()))
	}
	if d.Log == nil {
		d.Log = logging.Nop{}
	}
	return &App{
		owner:       d.OwnerID,
		maxBytes:    d.MaxBytes,
		uploader:    d.Uploader,
		syncer:      d.Syncer,
		sweeper:     d.Sweeper,
		status:      d.Status,
		queue:       d.Queue,
		online:      d.Online,
		marks:       d.Marks,
		now:         time.Now,
		reader:      bufio.NewReader(d.In),
		out:         d.Out,
		interactive: interactive,
		log:         d.Log,
	}
}

func (a *App) mode() Mode {
	if a.online != nil && a.online.IsOnline() {
		return ModeOnline
	}
	return ModeOffline
}

func (a *App) prompt() string {
	return fmt.Sprintf("(%s %s)", a.owner, a.mode())
}

// Run blocks in the REPL until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	printlnFn("Welcome to VoxKeeper (type 'help' for commands)")
	runREPL(ctx, a, a.prompt, a.reader)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
