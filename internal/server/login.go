package server

import (
	"sockmud/internal/arena"
	muderr "sockmud/internal/errors"
	"sockmud/internal/session"
	"sockmud/internal/telnet"
)

type loginHandler func(s *Server, c *Connection, arg string)

// loginHandlers holds one handler per pre-game state.
var loginHandlers = map[State]loginHandler{
	StateGetName:        (*Server).handleName,
	StateNewPassword:    (*Server).handleNewPassword,
	StateVerifyPassword: (*Server).handleVerifyPassword,
	StateAskPassword:    (*Server).handleAskPassword,
}

func (s *Server) login(c *Connection, arg string) {
	h, ok := loginHandlers[c.state]
	if !ok {
		s.logger.Error("Handle_new_connections: bad state %v.", c.state)
		return
	}
	h(s, c, arg)
}

func (s *Server) handleName(c *Connection, arg string) {
	if c.lookup != LookupDone {
		s.send(c, msgLookupPending)
		return
	}
	if !session.ValidName(arg) {
		s.send(c, msgBadName)
		return
	}
	name := session.Capitalize(arg)
	s.logger.Info("%s is trying to connect.", name)

	creds, err := s.credentials(name)
	if err != nil && !muderr.Is(err, muderr.ErrNotFound) {
		s.logger.Error("%v", err)
		s.metrics.RecordError(err.Error())
		s.writeRaw(c, []byte(msgPfileCorrupt))
		s.closeConn(c, false)
		return
	}

	sh, sess := s.newSession()
	if creds == nil {
		sess.Name = name
		sess.Level = session.LevelPlayer
		s.send(c, msgNewPassword)
		c.state = StateNewPassword
	} else {
		sess.Name = creds.Name
		sess.Password = creds.Password
		s.send(c, msgAskPassword)
		c.state = StateAskPassword
	}
	s.send(c, string(telnet.WillEcho))

	sess.Conn = c.handle
	c.session = sh
}

// credentials finds the password hash for name, preferring a session
// already in the game over the stored profile.
func (s *Server) credentials(name string) (*session.Session, error) {
	if _, active, ok := s.reg.FindActive(name); ok {
		return &session.Session{Name: active.Name, Password: active.Password}, nil
	}
	return s.store.LoadCredentials(name)
}

func (s *Server) handleNewPassword(c *Connection, arg string) {
	sess, ok := s.reg.Session(c.session)
	if !ok {
		s.closeConn(c, false)
		return
	}
	if !session.ValidPassword(arg) {
		s.send(c, msgBadPasswordLen)
		return
	}
	if err := sess.SetPassword(arg, s.opts.PasswordCost); err != nil {
		s.logger.Error("Handle_new_connections: %v", err)
		s.closeConn(c, false)
		return
	}
	s.send(c, msgVerifyPassword)
	c.state = StateVerifyPassword
}

func (s *Server) handleVerifyPassword(c *Connection, arg string) {
	sess, ok := s.reg.Session(c.session)
	if !ok {
		s.closeConn(c, false)
		return
	}
	if !sess.CheckPassword(arg) {
		sess.Password = ""
		s.send(c, msgMismatch)
		c.state = StateNewPassword
		return
	}

	s.send(c, string(telnet.WontEcho))
	s.promote(sess)
	s.reg.activate(c.session)
	s.logger.Info("New player: %s has entered the game.", sess.Name)

	c.state = StatePlaying
	s.send(c, s.help.Motd())
}

func (s *Server) handleAskPassword(c *Connection, arg string) {
	sess, ok := s.reg.Session(c.session)
	if !ok {
		s.closeConn(c, false)
		return
	}
	s.send(c, string(telnet.WontEcho))

	if !sess.CheckPassword(arg) {
		s.writeRaw(c, []byte(msgBadPassword))
		s.closeConn(c, false)
		return
	}

	if ah, active, ok := s.reg.FindActive(sess.Name); ok {
		s.reconnect(c, ah, active)
		return
	}

	loaded, err := s.store.Load(sess.Name)
	if err != nil {
		s.logger.Error("%v", err)
		s.metrics.RecordError(err.Error())
		s.writeRaw(c, []byte(msgPfileMissing))
		s.closeConn(c, false)
		return
	}

	*sess = *loaded
	sess.Conn = c.handle
	s.promote(sess)
	s.reg.activate(c.session)
	s.logger.Info("%s has entered the game.", sess.Name)

	c.state = StatePlaying
	s.send(c, s.help.Motd())
}

// reconnect binds c to an active session, taking it over from whatever
// connection held it.
func (s *Server) reconnect(c *Connection, ah arena.Handle, active *session.Session) {
	if old, ok := s.reg.Conn(active.Conn); ok && old != c {
		s.closeConn(old, true)
	}

	s.reg.sessions.Free(c.session)
	c.session = ah
	active.Conn = c.handle
	s.logger.Info("%s has reconnected.", active.Name)

	c.state = StatePlaying
	s.send(c, msgTakeover)
}

func (s *Server) newSession() (arena.Handle, *session.Session) {
	h, sess, err := s.reg.newSession()
	if err != nil {
		s.logger.Fatal("Handle_new_connections: cannot allocate session: %v", err)
		return arena.Handle{}, nil
	}
	return h, sess
}
