package main

import (
	"github.com/pterm/pterm"
)

type progressBar struct {
	bar *pterm.ProgressbarPrinter
}

func startProgressBar(title string) (*progressBar, error) {
	bar, err := pterm.DefaultProgressbar.WithTotal(100).WithTitle(title).Start()
	if err != nil {
		return nil, err
	}
	return &progressBar{bar: bar}, nil
}

func (p *progressBar) Progress(fraction float64) {
	if delta := int(fraction*100) - p.bar.Current; delta > 0 {
		p.bar.Add(delta)
	}
}

func (p *progressBar) Stop() {
	p.bar.Stop()
}
