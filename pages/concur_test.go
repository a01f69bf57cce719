package pages

import "math/rand"
import "sync"
import "testing"

func TestShardConcur(t *testing.T) {
	m, clk := newtestmapper(), &testclock{}
	setts := testsettings()
	setts["dirty.decayms"] = int64(1)
	setts["muzzy.decayms"] = int64(1)
	shard := NewShard("concur", m, clk, nil, nil, setts)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			held := make([]*Extent, 0, 32)
			for j := 0; j < 2000; j++ {
				switch {
				case len(held) > 0 && rnd.Intn(3) == 0:
					k := rnd.Intn(len(held))
					ext := held[k]
					held[k] = held[len(held)-1]
					held = held[:len(held)-1]
					if pages := ext.Size() / 4096; pages > 1 && rnd.Intn(2) == 0 {
						keep := (1 + rnd.Int63n(pages-1)) * 4096
						err := shard.Shrink(
							ext, ext.Size(), keep, 1, false, nil)
						if err != nil {
							t.Error(err)
							return
						}
					}
					shard.Dalloc(ext, nil)
				case rnd.Intn(20) == 0:
					clk.advanceby(1000000)
					shard.MaybeDecayPurge(
						shard.DecayDirty(), &shard.stats.Dirty,
						shard.CacheDirty(), PurgeOnEpochAdvance)
					shard.MaybeDecayPurge(
						shard.DecayMuzzy(), &shard.stats.Muzzy,
						shard.CacheMuzzy(), PurgeOnEpochAdvance)
				default:
					size := (1 + rnd.Int63n(8)) * 4096
					ext, err := shard.Alloc(size, 0, false, 1, nil)
					if err != nil {
						t.Error(err)
						return
					}
					held = append(held, ext)
				}
			}
			for _, ext := range held {
				shard.Dalloc(ext, nil)
			}
		}(int64(i))
	}
	wg.Wait()

	if x := shard.Nactive(); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
	shard.Validate()
	shard.Close()
}
