/*
Package waypoint is the core of an in-app guidance SDK. It fetches remotely
authored experiences (ordered groups of pages), presents them through a strict
state machine, reports lifecycle analytics and listens on a realtime channel
so the server can trigger experiences on demand.

# Concept

An experience moves through idling, beginningExperience, beginningStep,
renderingStep, endingStep and endingExperience. The host only supplies the
platform pieces: a ContainerFactory that turns a composed step group into
something on screen, and optionally a Delegate that can veto or follow
presentation. Everything else (trait resolution, step navigation, analytics,
deferred loading) lives here.

All state machine work runs on a single goroutine owned by the SDK. Container
callbacks and public methods are queued onto it, so the host may call in from
any goroutine.

# Usage

	sdk, err := waypoint.New(
		waypoint.WithContainerFactory(myFactory),
		waypoint.WithSource(memory.NewSource(exp)),
		waypoint.WithSink(analytics.NewLogSink(logger)),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer sdk.Close()

	// Resolves once the first step is on screen.
	if err := sdk.Show(ctx, exp); err != nil {
		log.Printf("experience failed: %v", err)
	}

	// Move to the next page.
	_ = sdk.ShowStep(ctx, domain.OffsetRef(1))
*/
package waypoint
