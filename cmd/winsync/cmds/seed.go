package cmds

import (
	"bufio"
	"bytes"
	"os"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"winsync/internal/backends"
	"winsync/internal/backends/items"
	"winsync/internal/types"
)

var seedCmd = &cobra.Command{
	Use:   "seed <list-id> <items-file>",
	Short: "Replace the items of a list in the configured backend",
	Long:  "Loads items from a JSON array or a JSON lines file and writes them to the data backend of the list.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		factory := backends.NewFactory()
		defer func() {
			_ = factory.Close()
		}()
		cfg, err := loadLists(cmd.Context(), factory)
		if err != nil {
			return err
		}
		lc, err := cfg.List(args[0])
		if err != nil {
			return err
		}
		rows, err := readItems(args[1])
		if err != nil {
			return err
		}
		if err := factory.Seed(cmd.Context(), lc, rows); err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"list":    lc.ID,
			"backend": factory.Backend(),
			"items":   len(rows),
		}).Info("list seeded")
		return nil
	},
}

// readItems accepts a JSON array or one JSON document per line.
func readItems(path string) ([]types.Item, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []types.Item
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var rows []types.Item
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		item, err := items.Decode(line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, item)
	}
	return rows, sc.Err()
}
