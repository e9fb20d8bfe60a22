// Package module implements the Command Surface: a closed set of typed
// operations, each a thin binding over the Protocol Engine with an
// operation-specific request template and response classifier already
// wired in by the engine package.
package module

import (
	"context"
	"fmt"

	"github.com/srg/hrbridge/internal/engine"
)

// Surface is the typed operation set spec.md §2 names, bound over a single
// Engine instance.
type Surface struct {
	eng *engine.Engine
}

// New binds a Surface over eng.
func New(eng *engine.Engine) *Surface {
	return &Surface{eng: eng}
}

// Echo issues the "AT" sanity check.
func (s *Surface) Echo(ctx context.Context) (engine.EchoResult, error) {
	res, err := s.eng.Do(ctx, engine.Echo, "")
	if err != nil {
		return 0, err
	}
	return res.(engine.EchoResult), nil
}

// ConnectMac connects to the peer at the given 12-character MAC.
func (s *Surface) ConnectMac(ctx context.Context, mac string) (engine.ConnectResult, error) {
	res, err := s.eng.Do(ctx, engine.ConnectMac, mac)
	if err != nil {
		return 0, err
	}
	return res.(engine.ConnectResult), nil
}

// ConnectLast reconnects to the most recently connected peer.
func (s *Surface) ConnectLast(ctx context.Context) error {
	_, err := s.eng.Do(ctx, engine.ConnectLast, "")
	return err
}

// MacRead requests the module's own MAC address.
func (s *Surface) MacRead(ctx context.Context) error {
	_, err := s.eng.Do(ctx, engine.MacRead, "")
	return err
}

// MacWrite sets the module's own MAC address.
func (s *Surface) MacWrite(ctx context.Context, mac string) error {
	_, err := s.eng.Do(ctx, engine.MacWrite, mac)
	return err
}

// Discover starts a peer discovery scan.
func (s *Surface) Discover(ctx context.Context) error {
	_, err := s.eng.Do(ctx, engine.Discover, "")
	return err
}

// SetPassive suppresses the module's automatic background behavior.
func (s *Surface) SetPassive(ctx context.Context) error {
	_, err := s.eng.Do(ctx, engine.Passive, "")
	return err
}

// SetName sets the module's advertised name.
func (s *Surface) SetName(ctx context.Context, name string) error {
	_, err := s.eng.Do(ctx, engine.SetName, name)
	return err
}

// Reset restores the module's defaults.
func (s *Surface) Reset(ctx context.Context) error {
	_, err := s.eng.Do(ctx, engine.Reset, "")
	return err
}

// SetRole selects master or peripheral role.
func (s *Surface) SetRole(ctx context.Context, role engine.Role) error {
	_, err := s.eng.Do(ctx, engine.SetRole, fmt.Sprintf("%d", role))
	return err
}

// Sleep puts the module into low-power sleep.
func (s *Surface) Sleep(ctx context.Context) error {
	_, err := s.eng.Do(ctx, engine.Sleep, "")
	return err
}

// NotifyOn subscribes to notifications on the given 4-character
// characteristic id.
func (s *Surface) NotifyOn(ctx context.Context, characteristic string) error {
	_, err := s.eng.Do(ctx, engine.NotifyOn, characteristic)
	return err
}

// NotifyOff unsubscribes from notifications on the given characteristic.
func (s *Surface) NotifyOff(ctx context.Context, characteristic string) error {
	_, err := s.eng.Do(ctx, engine.NotifyOff, characteristic)
	return err
}

// ServiceProbe returns the byte length the caller must allocate (including
// the size-plus-one terminator slot) before calling ServiceFetch.
func (s *Surface) ServiceProbe(ctx context.Context) (int, error) {
	res, err := s.eng.Do(ctx, engine.ServiceProbe, "")
	if err != nil {
		return 0, err
	}
	return res.(int), nil
}

// ServiceFetch returns the enumerated services. bufLen must equal the value
// the preceding ServiceProbe returned; the result holds the effective
// payload of bufLen-1 bytes.
func (s *Surface) ServiceFetch(ctx context.Context, bufLen int) ([]byte, error) {
	res, err := s.eng.Do(ctx, engine.ServiceFetch, fmt.Sprintf("%d", bufLen))
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

// CharacteristicProbe mirrors ServiceProbe for characteristic enumeration.
func (s *Surface) CharacteristicProbe(ctx context.Context) (int, error) {
	res, err := s.eng.Do(ctx, engine.CharacteristicProbe, "")
	if err != nil {
		return 0, err
	}
	return res.(int), nil
}

// CharacteristicFetch mirrors ServiceFetch for characteristic enumeration.
func (s *Surface) CharacteristicFetch(ctx context.Context, bufLen int) ([]byte, error) {
	res, err := s.eng.Do(ctx, engine.CharacteristicFetch, fmt.Sprintf("%d", bufLen))
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

// ReadLatestNotified returns the most recent sample the Broadcaster has
// observed from the Scavenger.
func (s *Surface) ReadLatestNotified(ctx context.Context) (byte, error) {
	res, err := s.eng.Do(ctx, engine.ReadLatestNotified, "")
	if err != nil {
		return 0, err
	}
	return res.(byte), nil
}
