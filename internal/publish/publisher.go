package publish

import (
	"context"

	"github.com/nir0k/photokeep/internal/storage"
)

// Publisher announces a stored photo: file-scheme writes are pushed to the
// media index (catalog-backed rows are indexed at insert time already), and
// when auto-send is on the bytes go to the uploader.
type Publisher struct {
	backend  storage.Backend
	index    Index
	uploader Uploader
	autoSend bool
}

// NewPublisher builds a Publisher. index and uploader may each be nil,
// turning the corresponding step into a no-op.
func NewPublisher(backend storage.Backend, index Index, uploader Uploader, autoSend bool) *Publisher {
	return &Publisher{
		backend:  backend,
		index:    index,
		uploader: uploader,
		autoSend: autoSend,
	}
}

// Published implements the photo entity's notifier contract.
func (p *Publisher) Published(ctx context.Context, loc storage.Locator) error {
	const op = "publish photo"

	if p.index != nil && loc.Scheme == storage.SchemeFile {
		if err := p.index.FileAdded(ctx, loc.Ref); err != nil {
			return storage.E(storage.KindPublication, op, err)
		}
	}
	if p.autoSend && p.uploader != nil {
		if err := p.Send(ctx, loc); err != nil {
			return err
		}
	}
	return nil
}

// Send uploads the artifact regardless of the auto-send switch.
func (p *Publisher) Send(ctx context.Context, loc storage.Locator) error {
	const op = "send photo"
	if p.uploader == nil {
		return storage.Errorf(storage.KindPublication, op, "no upload endpoint configured")
	}

	name, err := p.backend.DisplayName(ctx, loc)
	if err != nil {
		return storage.E(storage.KindPublication, op, err)
	}
	rc, err := p.backend.Open(ctx, loc)
	if err != nil {
		return storage.E(storage.KindPublication, op, err)
	}
	defer rc.Close()

	if err := p.uploader.Upload(ctx, name, rc); err != nil {
		return storage.E(storage.KindPublication, op, err)
	}
	return nil
}
