package reactor

import (
	"fmt"

	"github.com/ValentinKolb/csIPC/lib/util"
)

// LoopPool owns a fixed set of I/O loops next to a base loop. With zero I/O
// loops every query returns the base loop.
//
// Queries must be made on the base loop's thread. Start and Stop may be called
// from anywhere but not concurrently with each other.
type LoopPool struct {
	base    *Loop
	name    string
	size    int
	loops   []*Loop
	next    int
	started bool
}

// NewLoopPool creates a pool of n I/O loops. The loops are created by Start.
func NewLoopPool(base *Loop, name string, n int) *LoopPool {
	if n < 0 {
		n = 0
	}
	return &LoopPool{
		base: base,
		name: name,
		size: n,
	}
}

// Start creates and starts the I/O loops
func (p *LoopPool) Start() {
	if p.started {
		panic(fmt.Sprintf("reactor: pool %s started twice", p.name))
	}
	p.started = true
	p.loops = make([]*Loop, 0, p.size)
	for i := range p.size {
		loop := NewLoop(fmt.Sprintf("%s-io-%d", p.name, i))
		loop.Start()
		p.loops = append(p.loops, loop)
	}
	log.Infof("pool %s started with %d io loops", p.name, p.size)
}

// Stop stops every I/O loop and waits for them to exit
func (p *LoopPool) Stop() {
	for _, loop := range p.loops {
		loop.Stop()
	}
}

// Len returns the number of I/O loops
func (p *LoopPool) Len() int {
	return p.size
}

// Base returns the base loop
func (p *LoopPool) Base() *Loop {
	return p.base
}

// NextLoop returns the I/O loops round-robin
func (p *LoopPool) NextLoop() *Loop {
	p.base.AssertInLoopThread()
	if len(p.loops) == 0 {
		return p.base
	}
	loop := p.loops[p.next]
	p.next = (p.next + 1) % len(p.loops)
	return loop
}

// LoopForHash returns the I/O loop key is pinned to. The same key always maps
// to the same loop.
func (p *LoopPool) LoopForHash(key string) *Loop {
	p.base.AssertInLoopThread()
	if len(p.loops) == 0 {
		return p.base
	}
	return p.loops[util.HashString(key, 0)%uint64(len(p.loops))]
}

// AllLoops returns every I/O loop, or only the base loop if there are none
func (p *LoopPool) AllLoops() []*Loop {
	p.base.AssertInLoopThread()
	if len(p.loops) == 0 {
		return []*Loop{p.base}
	}
	return append([]*Loop(nil), p.loops...)
}
