package platform

import (
	"renamewiki-system/pkg/config"
)

// WikiDirectory отвечает на вопросы о вики, известных платформе.
type WikiDirectory interface {
	// IsLocalWiki сообщает, существует ли вики с таким идентификатором.
	IsLocalWiki(dbname string) bool

	// IsPrivateWiki сообщает, закрыта ли вики настройками платформы.
	IsPrivateWiki(dbname string) bool

	// InterwikiAlias возвращает новый идентификатор, если вики уже была
	// переименована, и пустую строку в противном случае.
	InterwikiAlias(dbname string) string
}

type configDirectory struct {
	local     map[string]struct{}
	private   map[string]struct{}
	interwiki map[string]string
}

// NewConfigDirectory строит справочник по статической конфигурации платформы.
func NewConfigDirectory(cfg config.RenameWikiConfig) WikiDirectory {
	d := &configDirectory{
		local:     make(map[string]struct{}, len(cfg.LocalWikis)),
		private:   make(map[string]struct{}, len(cfg.PrivateWikis)),
		interwiki: cfg.InterwikiMap,
	}
	for _, dbname := range cfg.LocalWikis {
		d.local[dbname] = struct{}{}
	}
	for _, dbname := range cfg.PrivateWikis {
		d.private[dbname] = struct{}{}
	}
	return d
}

func (d *configDirectory) IsLocalWiki(dbname string) bool {
	_, ok := d.local[dbname]
	return ok
}

func (d *configDirectory) IsPrivateWiki(dbname string) bool {
	_, ok := d.private[dbname]
	return ok
}

func (d *configDirectory) InterwikiAlias(dbname string) string {
	return d.interwiki[dbname]
}
