package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/util"
)

// ExportHeader is the header row of the fleet CSV export.
var ExportHeader = []string{
	"Address", "Hostname", "Model", "Firmware", "ControlBoard",
	"Hashrate(TH/s)", "Wattage(W)", "Efficiency(W/TH)", "Temperature(°C)",
	"FanSpeed(RPM)", "Pool", "Worker",
}

// WriteCSV writes the fleet export with units stripped from values.
func WriteCSV(w io.Writer, entries []model.MinerEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, e := range entries {
		d := e.Display
		row := []string{
			e.Address,
			d.Hostname,
			d.Model,
			d.Firmware,
			d.ControlBoard,
			d.Hashrate,
			model.StripUnit(d.Wattage, " W"),
			d.Efficiency,
			model.StripUnit(d.Temperature, "°C"),
			model.StripUnit(d.FanSpeed, " RPM"),
			d.Pool,
			d.Worker,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", e.Address, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportFile writes the fleet export to path.
func ExportFile(path string, entries []model.MinerEntry) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := util.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create export dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export: %w", err)
	}
	if err := WriteCSV(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
