// Package webrtc wraps a pion peer connection for the demo commands: it
// produces SDP offers, applies answers and offers delivered on the
// session's event stream, and bridges trickle candidates in both
// directions. The signaling core never interprets SDP; this package is the
// consumer side of that contract.
package webrtc

import (
	"fmt"

	"github.com/pion/ice/v4"
	"github.com/pion/webrtc/v4"

	"github.com/nevern02/janusgate/pkg/protocol"
)

// API holds the shared pion engine. Using one API instance is what makes
// multiple peer connections coexist in a single process.
type API struct {
	api *webrtc.API
}

// NewAPI builds the engine with mDNS candidate gathering enabled.
func NewAPI() *API {
	settings := webrtc.SettingEngine{}
	settings.SetICEMulticastDNSMode(ice.MulticastDNSModeQueryAndGather)

	return &API{
		api: webrtc.NewAPI(webrtc.WithSettingEngine(settings)),
	}
}

// Config holds the configuration for a new Peer.
type Config struct {
	ICEServers []webrtc.ICEServer
}

// Peer wraps a single WebRTC peer connection.
type Peer struct {
	pc *webrtc.PeerConnection
}

// NewPeer creates a peer connection, defaulting to a public STUN server
// when no ICE servers are configured.
func (a *API) NewPeer(config Config) (*Peer, error) {
	if len(config.ICEServers) == 0 {
		config.ICEServers = append(config.ICEServers, webrtc.ICEServer{
			URLs: []string{"stun:stun.l.google.com:19302"},
		})
	}
	pc, err := a.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: config.ICEServers,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return &Peer{pc: pc}, nil
}

// AddRecvTransceivers adds receive-only audio and video transceivers, so
// an offer can be produced without local capture devices.
func (p *Peer) AddRecvTransceivers() error {
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		_, err := p.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		if err != nil {
			return fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}
	return nil
}

// CreateOffer produces a local SDP offer ready to embed in a plugin
// message. Candidates trickle afterwards via OnICECandidate.
func (p *Peer) CreateOffer() (*protocol.Jsep, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return &protocol.Jsep{Type: "offer", SDP: offer.SDP}, nil
}

// SetAnswer applies the remote SDP answer delivered on the event stream.
func (p *Peer) SetAnswer(answer *protocol.Jsep) error {
	desc, err := toSessionDescription(answer)
	if err != nil {
		return err
	}
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

// Answer applies a remote SDP offer (as the streaming plugin sends for a
// watch request) and produces the local answer.
func (p *Peer) Answer(offer *protocol.Jsep) (*protocol.Jsep, error) {
	desc, err := toSessionDescription(offer)
	if err != nil {
		return nil, err
	}
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return nil, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return &protocol.Jsep{Type: "answer", SDP: answer.SDP}, nil
}

// OnICECandidate forwards each gathered local candidate to send; done
// fires once gathering completes.
func (p *Peer) OnICECandidate(send func(protocol.Candidate), done func()) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			done()
			return
		}
		init := c.ToJSON()
		candidate := protocol.Candidate{Candidate: init.Candidate}
		if init.SDPMid != nil {
			candidate.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			candidate.SDPMLineIndex = *init.SDPMLineIndex
		}
		send(candidate)
	})
}

// AddRemoteCandidate applies a trickle candidate from the event stream.
// The end-of-candidates marker is a no-op for pion.
func (p *Peer) AddRemoteCandidate(c protocol.Candidate) error {
	if c.Completed {
		return nil
	}
	mid := c.SDPMid
	index := c.SDPMLineIndex
	return p.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: &index,
	})
}

// OnConnectionStateChange registers a state observer.
func (p *Peer) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(f)
}

// OnTrack registers a remote-track observer.
func (p *Peer) OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	p.pc.OnTrack(f)
}

// Close shuts the peer connection down.
func (p *Peer) Close() error {
	return p.pc.Close()
}

func toSessionDescription(jsep *protocol.Jsep) (webrtc.SessionDescription, error) {
	if jsep == nil || jsep.SDP == "" {
		return webrtc.SessionDescription{}, fmt.Errorf("empty jsep payload")
	}
	var sdpType webrtc.SDPType
	switch jsep.Type {
	case "offer":
		sdpType = webrtc.SDPTypeOffer
	case "answer":
		sdpType = webrtc.SDPTypeAnswer
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("unsupported sdp type %q", jsep.Type)
	}
	return webrtc.SessionDescription{Type: sdpType, SDP: jsep.SDP}, nil
}
