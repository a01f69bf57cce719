package pages

import "sync/atomic"
import "time"

// go-routine to drive decay purging in the background. Skips a tier
// when another caller is already sweeping it.
func purger(shard *Shard, tickms int64) {
	infof("%v purger: starting ...", shard.logprefix)

	defer func() {
		if r := recover(); r != nil {
			errorf("%v purger crashed %v", shard.logprefix, r)
		} else {
			infof("%v purger: stopped", shard.logprefix)
		}
		atomic.AddInt64(&shard.nroutines, -1)
	}()

	ticker := time.NewTicker(time.Duration(tickms) * time.Millisecond)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
		case <-shard.finch:
			break loop
		}
		if shard.decaydirty.PurgeInProgress() == false {
			shard.MaybeDecayPurge(
				shard.decaydirty, &shard.stats.Dirty, shard.dirty,
				PurgeOnEpochAdvance)
		}
		if shard.decaymuzzy.PurgeInProgress() == false {
			shard.MaybeDecayPurge(
				shard.decaymuzzy, &shard.stats.Muzzy, shard.muzzy,
				PurgeOnEpochAdvance)
		}
	}
}
