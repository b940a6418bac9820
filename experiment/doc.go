// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package experiment runs the reading experiment: sessions, stimulus
assignment, event ingestion, hold derivation, ratings and the admin views.

# Sessions

A participant gets exactly one session per study. StartSession writes the
participant lock, the participant and the session in one transaction; the
lock is never released, so a second start fails with
ErrDuplicateParticipant. Every lease-scoped call compares the caller's
lease token and gates its write on the same token:

	sess, err := svc.StartSession(ctx, identity, "")
	expires, err := svc.Heartbeat(ctx, sess.SessionID, sess.LeaseToken)

# Assignment

NextStimulus hands out stimuli in increasing order. Rows move through

	assigned → in_progress → done
	assigned | in_progress → interrupted

and never leave done or interrupted. Allocation prefers the stimulus with
the fewest completed exposures and claims it with a compare-and-increment
on the counter's claim version.

# Events and holds

IngestEvents accepts a batch for a single stimulus and run. Events are
stored put-if-absent under a key that sorts by sequence, so re-sending a
batch is safe. Hold episodes are derived from interval ends and point
marks and stored the same way.
*/
package experiment
