package output

import (
	"context"
	"fmt"
	"sort"

	"github.com/pterm/pterm"

	"github.com/bernd-wechner/Degoo/backend"
)

func HumanizeSize(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// PrintItemTable renders a long-form directory listing.
func PrintItemTable(items []backend.RemoteItem, human bool) error {
	tableData := [][]string{
		{"Name", "Kind", "Size", "Modified", "ID"},
	}

	for _, item := range items {
		size := fmt.Sprintf("%d", item.Size)
		if human {
			size = HumanizeSize(item.Size)
		}
		if item.Kind.IsContainer() {
			size = "-"
		}
		modified := "-"
		if !item.Modified.IsZero() {
			modified = item.Modified.Format("2006-01-02 15:04")
		}
		tableData = append(tableData, []string{
			item.Name,
			item.Kind.String(),
			size,
			modified,
			fmt.Sprintf("%d", item.ID),
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
}

// PrintItemNames renders the short listing, containers suffixed with the
// separator so they read the way shell users expect.
func PrintItemNames(items []backend.RemoteItem, sep string) {
	for _, item := range items {
		name := item.Name
		if item.Kind.IsContainer() {
			name += sep
		}
		pterm.Println(name)
	}
}

// PrintUserInfo renders the account summary as key/value lines.
func PrintUserInfo(info backend.UserInfo) {
	pterm.Printfln("Name:  %s", info.Name)
	pterm.Printfln("Email: %s", info.Email)
	if info.Phone != "" {
		pterm.Printfln("Phone: %s", info.Phone)
	}
	pterm.Printfln("Plan:  %s", info.Plan)
	if info.TotalQuota > 0 {
		pterm.Printfln("Quota: %s of %s used", HumanizeSize(info.UsedQuota), HumanizeSize(info.TotalQuota))
	}
}

// Lister is the slice of Drive the tree renderer needs.
type Lister interface {
	ListAt(ctx context.Context, path backend.CanonicalPath) ([]backend.RemoteItem, error)
}

// PrintTree renders the folder hierarchy under root with box-drawing
// connectors, files listed before subfolders at each level.
func PrintTree(ctx context.Context, drive Lister, root backend.CanonicalPath, rootItem backend.RemoteItem) error {
	name := rootItem.Name
	if root.IsRoot() {
		name = "/"
	}
	pterm.Println(name)
	return printTreeLevel(ctx, drive, root, "")
}

func printTreeLevel(ctx context.Context, drive Lister, path backend.CanonicalPath, prefix string) error {
	items, err := drive.ListAt(ctx, path)
	if err != nil {
		return err
	}

	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := items[i].Kind.IsContainer(), items[j].Kind.IsContainer()
		if ci != cj {
			return !ci
		}
		return items[i].Name < items[j].Name
	})

	for i, item := range items {
		connector, childPrefix := "├── ", prefix+"│   "
		if i == len(items)-1 {
			connector, childPrefix = "└── ", prefix+"    "
		}
		pterm.Println(prefix + connector + item.Name)
		if item.Kind.IsContainer() {
			if err := printTreeLevel(ctx, drive, path.Child(item.Name), childPrefix); err != nil {
				return err
			}
		}
	}
	return nil
}
